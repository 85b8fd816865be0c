package web

import (
	"fmt"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/JonMunkholm/paystub/internal/payroll"
)

// maxQueryBody bounds the JSON body of /api/query.
const maxQueryBody = 64 << 10

func (s *Server) handleAPIMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.service.Months(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"months": months})
}

func (s *Server) handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	var q payroll.QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody))
	if err := dec.Decode(&q); err != nil {
		err = fmt.Errorf("%w: decode query: %v", payroll.ErrInvalidInput, err)
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	slip, err := s.service.Query(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

func (s *Server) handleAPIImports(w http.ResponseWriter, r *http.Request) {
	limit := recentImports
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	imports, err := s.service.RecentImports(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": imports})
}

func (s *Server) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	preview, err := s.service.PreviewWorkbook(r.Context(), req.FileName, req.Data)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	result, err := s.service.ImportWorkbook(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
