package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/paystub/internal/config"
	"github.com/JonMunkholm/paystub/internal/payroll"
	"github.com/JonMunkholm/paystub/internal/store/jsonfile"
)

type testEnv struct {
	server  *Server
	service *payroll.Service
	http    *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := map[string]string{
		"DATA_DIR":   dir,
		"SECRET_KEY": "test-secret-key-0123456789",
	}
	cfg, err := config.LoadFrom(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	store, err := jsonfile.Open(dir)
	require.NoError(t, err)

	svc := payroll.NewService(store, payroll.NewImportLimiter(2, 0), payroll.Options{
		MaxFileSize: cfg.Upload.MaxFileSize,
	})
	s := NewServer(svc, cfg)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return &testEnv{server: s, service: svc, http: ts}
}

// client returns a browser-like client that keeps cookies and follows redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) adminClient(t *testing.T) *http.Client {
	t.Helper()
	c := e.client(t)
	resp, err := c.PostForm(e.http.URL+"/login", url.Values{
		"username": {config.DefaultAdminUsername},
		"password": {config.DefaultAdminPassword},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/admin", resp.Request.URL.Path, body)
	return c
}

func (e *testEnv) seed(t *testing.T, month string, rows ...[]any) {
	t.Helper()
	_, err := e.service.ImportWorkbook(context.Background(), payroll.ImportRequest{
		Month:    month,
		FileName: "salary.xlsx",
		Data:     workbook(t, rows...),
	})
	require.NoError(t, err)
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

var (
	header  = []any{"序号", "姓名", "银行卡号", "基本工资", "<b>奖金</b>"}
	zhang   = []any{1, "张三", "6222020200001234", 5000, 300.5}
	li      = []any{2, "李四", "6222020200005678", 6000, ""}
	zhangQ  = url.Values{"name": {"张三"}, "card_last6": {"001234"}, "month": {"2024-01"}}
	unknown = url.Values{"name": {"王五"}, "card_last6": {"999999"}, "month": {"2024-01"}}
)

func multipartBody(t *testing.T, fields map[string]string, fileName string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)

	resp, err := http.Get(e.http.URL + "/healthz")
	require.NoError(t, err)
	var body map[string]any
	decodeJSON(t, resp, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestIndex(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seed(t, "2024-01", header, zhang)

	resp, err := http.Get(e.http.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<option value="2024-01">`)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
}

func TestIndex_NoCSPWhenDisabled(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Security.EnableCSP = false })

	resp, err := http.Get(e.http.URL + "/")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Empty(t, resp.Header.Get("Content-Security-Policy"))
}

func TestQueryPage(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seed(t, "2024-01", header, zhang, li)

	resp, err := e.client(t).PostForm(e.http.URL+"/query", zhangQ)
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "张三")
	assert.Contains(t, body, "5000")
	assert.Contains(t, body, "300.50")
	assert.Contains(t, body, "&lt;b&gt;奖金&lt;/b&gt;", "headers are escaped")
	assert.NotContains(t, body, "<b>奖金</b>")
	assert.NotContains(t, body, "序号")
}

func TestQueryPage_FlashesErrors(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seed(t, "2024-01", header, zhang)
	c := e.client(t)

	resp, err := c.PostForm(e.http.URL+"/query", unknown)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "QRY001")

	// Shown once.
	resp, err = c.Get(e.http.URL + "/")
	require.NoError(t, err)
	assert.NotContains(t, readBody(t, resp), "QRY001")

	resp, err = c.PostForm(e.http.URL+"/query", url.Values{"name": {"张三"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "VAL003")

	resp, err = c.PostForm(e.http.URL+"/query", url.Values{"name": {"张三"}, "card_last6": {"001234"}, "month": {"2023-12"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "QRY002")
}

func TestAdmin_RequiresLogin(t *testing.T) {
	e := newTestEnv(t, nil)

	resp, err := e.client(t).Get(e.http.URL + "/admin")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "AUTH002")

	resp, err = http.Get(e.http.URL + "/api/imports")
	require.NoError(t, err)
	var errResp ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH002", errResp.Code)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)

	resp, err := c.PostForm(e.http.URL+"/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "AUTH001")

	admin := e.adminClient(t)
	resp, err = admin.Get(e.http.URL + "/login")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/admin", resp.Request.URL.Path, "logged-in users skip the login form")

	resp, err = admin.Get(e.http.URL + "/logout")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/", resp.Request.URL.Path)

	resp, err = admin.Get(e.http.URL + "/admin")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestUploadPage(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.adminClient(t)

	body, ctype := multipartBody(t, map[string]string{"month_value": "2024-01"}, "salary-january.xlsx", workbook(t, header, zhang, li, []any{3, "nan", "1", 1}))
	resp, err := c.Post(e.http.URL+"/upload", ctype, body)
	require.NoError(t, err)
	page := readBody(t, resp)

	assert.Equal(t, "/admin", resp.Request.URL.Path)
	assert.Contains(t, page, "Imported 2 salary records for 2024-01 (2 new employees, 1 rows skipped)")
	assert.Contains(t, page, "salary-january.xlsx", "recent imports list the file")

	months, err := e.service.Months(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01"}, months)
}

func TestUploadPage_Rejections(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.adminClient(t)

	tests := []struct {
		name     string
		fields   map[string]string
		fileName string
		data     []byte
		code     string
	}{
		{"no file", map[string]string{"month_value": "2024-01"}, "", nil, "FILE003"},
		{"bad month", map[string]string{"month_value": "2024/01"}, "s.xlsx", workbook(t, header, zhang), "VAL001"},
		{"wrong extension", map[string]string{"month_value": "2024-01"}, "s.csv", []byte("a,b"), "FILE002"},
		{"not a workbook", map[string]string{"month": "2024-01"}, "s.xlsx", []byte("plain text"), "XLSX001"},
		{"missing column", map[string]string{"month": "2024-01"}, "s.xlsx", workbook(t, []any{"姓名", "基本工资"}, []any{"张三", 1}), "VAL002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, tt.fields, tt.fileName, tt.data)
			resp, err := c.Post(e.http.URL+"/upload", ctype, body)
			require.NoError(t, err)
			page := readBody(t, resp)
			assert.Equal(t, "/admin", resp.Request.URL.Path)
			assert.Contains(t, page, tt.code)
		})
	}
}

func TestAPIQuery(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seed(t, "2024-01", header, zhang)

	post := func(body string) *http.Response {
		resp, err := http.Post(e.http.URL+"/api/query", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"name":"张三","card_last6":"001234","month":"2024-01"}`)
	var slip payroll.Payslip
	decodeJSON(t, resp, &slip)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "张三", slip.EmployeeName)
	require.NotEmpty(t, slip.Items)
	assert.Equal(t, payroll.PayslipItem{Name: "基本工资", Value: "5000"}, slip.Items[0])

	tests := []struct {
		body   string
		status int
		code   string
	}{
		{`{not json`, http.StatusBadRequest, "VAL003"},
		{`{"name":"王五","card_last6":"999999","month":"2024-01"}`, http.StatusNotFound, "QRY001"},
		{`{"name":"张三","card_last6":"001234","month":"2024-13"}`, http.StatusBadRequest, "VAL001"},
	}
	for _, tt := range tests {
		resp := post(tt.body)
		var errResp ErrorResponse
		decodeJSON(t, resp, &errResp)
		assert.Equal(t, tt.status, resp.StatusCode, tt.body)
		assert.Equal(t, tt.code, errResp.Code, tt.body)
		assert.NotEmpty(t, errResp.Message)
	}
}

func TestAPIMonths(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seed(t, "2023-12", header, zhang)
	e.seed(t, "2024-01", header, zhang)

	resp, err := http.Get(e.http.URL + "/api/months")
	require.NoError(t, err)
	var body map[string][]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, []string{"2024-01", "2023-12"}, body["months"])
}

func TestAPIUploadAndPreview(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.adminClient(t)
	data := workbook(t, header, zhang, li)

	body, ctype := multipartBody(t, nil, "s.xlsx", data)
	resp, err := c.Post(e.http.URL+"/api/preview", ctype, body)
	require.NoError(t, err)
	var preview payroll.Preview
	decodeJSON(t, resp, &preview)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, preview.TotalRows)
	assert.Contains(t, preview.Headers, "姓名")

	body, ctype = multipartBody(t, map[string]string{"month": "2024-02"}, "s.xlsx", data)
	resp, err = c.Post(e.http.URL+"/api/upload", ctype, body)
	require.NoError(t, err)
	var result payroll.ImportResult
	decodeJSON(t, resp, &result)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, "2024-02", result.Month)

	resp, err = c.Get(e.http.URL + "/api/imports?limit=5")
	require.NoError(t, err)
	var history struct {
		Imports []payroll.ImportSummary `json:"imports"`
	}
	decodeJSON(t, resp, &history)
	require.Len(t, history.Imports, 1)
	assert.Equal(t, result.ImportID, history.Imports[0].ImportID)
}

func TestAPIUpload_TooLarge(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Upload.MaxFileSize = 1024 })
	c := e.adminClient(t)

	body, ctype := multipartBody(t, map[string]string{"month": "2024-01"}, "s.xlsx", workbook(t, header, zhang))
	resp, err := c.Post(e.http.URL+"/api/upload", ctype, body)
	require.NoError(t, err)
	var errResp ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "FILE001", errResp.Code)
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Rate.LoginLimit = 2 })
	c := e.client(t)

	wrong := url.Values{"username": {"admin"}, "password": {"nope"}}
	for i := 0; i < 2; i++ {
		resp, err := c.PostForm(e.http.URL+"/login", wrong)
		require.NoError(t, err)
		readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := c.PostForm(e.http.URL+"/login", wrong)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Contains(t, body, "RATE001")

	// Other routes keep their own budget.
	resp, err = c.Get(e.http.URL + "/")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitDisabled(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Rate.Enabled = false
		c.Rate.LoginLimit = 1
	})
	c := e.client(t)

	for i := 0; i < 3; i++ {
		resp, err := c.PostForm(e.http.URL+"/login", url.Values{"username": {"x"}, "password": {"y"}})
		require.NoError(t, err)
		readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Empty(t, e.server.limiters)
}
