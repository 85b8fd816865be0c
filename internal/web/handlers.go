package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/paystub/internal/logging"
	"github.com/JonMunkholm/paystub/internal/payroll"
)

// recentImports is how many history entries the admin page lists.
const recentImports = 10

func (s *Server) page(r *http.Request, title string) pageData {
	return pageData{
		Title:   title,
		Admin:   s.sessions.Username(r),
		Flashes: s.sessions.PopFlashes(r),
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// flashError queues a user-facing failure, or renders an error page for
// failures that carry nothing useful for the user.
func (s *Server) flashError(w http.ResponseWriter, r *http.Request, err error, to string) {
	if !payroll.IsUserFacing(err) {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(r.Context()).Info("request rejected", "path", r.URL.Path, "error", err)
	s.sessions.AddFlash(w, r, flashError, payroll.FormatUserError(err))
	s.redirect(w, r, to)
}

func logRenderError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := s.service.Limiter().Status()
	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_imports": status.Active,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	months, err := s.service.Months(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.render(w, r, http.StatusOK, indexPage(s.page(r, "Payslip lookup"), months))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := payroll.QueryRequest{
		Name:      r.PostFormValue("name"),
		CardLast6: r.PostFormValue("card_last6"),
		Month:     r.PostFormValue("month"),
	}
	slip, err := s.service.Query(r.Context(), q)
	if err != nil {
		s.flashError(w, r, err, "/")
		return
	}
	s.render(w, r, http.StatusOK, payslipPage(s.page(r, slip.EmployeeName+" "+slip.Month), slip))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Username(r) != "" {
		s.redirect(w, r, "/admin")
		return
	}
	s.render(w, r, http.StatusOK, loginPage(s.page(r, "Administrator login")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if !s.checkCredentials(username, password) {
		logging.FromContext(r.Context()).Warn("login failed", "username", username)
		s.flashError(w, r, errInvalidCredentials, "/login")
		return
	}

	s.sessions.Login(w, r, username)
	logging.FromContext(r.Context()).Info("admin logged in", "username", username)
	s.redirect(w, r, "/admin")
}

// checkCredentials compares both fields in constant time.
func (s *Server) checkCredentials(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Security.AdminUsername))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Security.AdminPassword))
	return u&p == 1
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w, r)
	s.redirect(w, r, "/")
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		s.respondError(w, r, errLoginRequired, http.StatusUnauthorized)
		return
	}
	s.sessions.AddFlash(w, r, flashError, payroll.FormatUserError(errLoginRequired))
	s.redirect(w, r, "/login")
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	months, err := s.service.Months(ctx)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	imports, err := s.service.RecentImports(ctx, recentImports)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.render(w, r, http.StatusOK, adminPage(s.page(r, "Upload"), adminData{
		Months:      months,
		Imports:     imports,
		Limiter:     s.service.Limiter().Status(),
		MaxFileSize: s.cfg.Upload.MaxFileSize,
	}))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.flashError(w, r, err, "/admin")
		return
	}

	result, err := s.service.ImportWorkbook(r.Context(), req)
	if err != nil {
		s.flashError(w, r, err, "/admin")
		return
	}

	s.sessions.AddFlash(w, r, flashSuccess, fmt.Sprintf(
		"Imported %d salary records for %s (%d new employees, %d rows skipped)",
		result.Processed, result.Month, result.NewEmployees, result.Skipped))
	if result.KeptAs != "" {
		s.sessions.AddFlash(w, r, flashSuccess, "Workbook kept as "+result.KeptAs)
	}
	s.redirect(w, r, "/admin")
}

// readUpload reads the multipart upload of r: the "file" part plus the
// month from "month_value" or "month".
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (payroll.ImportRequest, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return payroll.ImportRequest{}, payroll.ErrFileTooLarge
		}
		return payroll.ImportRequest{}, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		return payroll.ImportRequest{}, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return payroll.ImportRequest{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return payroll.ImportRequest{}, payroll.ErrFileTooLarge
	}

	month := r.FormValue("month_value")
	if strings.TrimSpace(month) == "" {
		month = r.FormValue("month")
	}
	return payroll.ImportRequest{
		Month:    month,
		FileName: header.Filename,
		Data:     data,
	}, nil
}
