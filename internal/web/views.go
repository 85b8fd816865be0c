package web

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/paystub/internal/payroll"
)

const pageStyle = `body{font-family:system-ui,"PingFang SC","Microsoft YaHei",sans-serif;margin:0;background:#f5f6f8;color:#222}
header{background:#1f3a5f;color:#fff;padding:.8rem 1.5rem;display:flex;gap:1rem;align-items:center}
header a{color:#fff;text-decoration:none}header .brand{font-weight:600;margin-right:auto}
main{max-width:760px;margin:1.5rem auto;padding:0 1rem}
section{background:#fff;border-radius:6px;padding:1.2rem 1.5rem;margin-bottom:1rem;box-shadow:0 1px 2px rgba(0,0,0,.08)}
label{display:block;margin:.6rem 0 .2rem}input,select{padding:.4rem;width:100%;box-sizing:border-box}
button{margin-top:1rem;padding:.5rem 1.2rem;background:#1f3a5f;color:#fff;border:0;border-radius:4px;cursor:pointer}
table{border-collapse:collapse;width:100%}th,td{border-bottom:1px solid #e3e5e8;padding:.45rem;text-align:left}
td.num{text-align:right;font-variant-numeric:tabular-nums}
.flash{padding:.6rem 1rem;border-radius:4px;margin-bottom:.6rem}
.flash-error{background:#fdecea;color:#8a1c1c}.flash-success{background:#e8f5e9;color:#1b5e20}
.muted{color:#777;font-size:.9em}`

// html accumulates the first write error so views read top to bottom.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) component(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

// render writes a full page with the given status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		logRenderError(r, err)
	}
}

type pageData struct {
	Title   string
	Admin   string
	Flashes []flash
}

func layout(p pageData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="zh-CN"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(p.Title)
		h.raw(`</title><style>` + pageStyle + `</style></head><body>`)

		h.raw(`<header><a class="brand" href="/">Payslip lookup</a>`)
		if p.Admin != "" {
			h.raw(`<a href="/admin">Upload</a><span class="muted">`)
			h.text(p.Admin)
			h.raw(`</span><a href="/logout">Log out</a>`)
		} else {
			h.raw(`<a href="/login">Admin login</a>`)
		}
		h.raw(`</header><main>`)

		for _, f := range p.Flashes {
			h.raw(`<div class="flash flash-` + f.Kind + `" role="alert">`)
			h.text(f.Message)
			h.raw(`</div>`)
		}
		h.component(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

func indexPage(p pageData, months []string) templ.Component {
	return layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section><h2>Look up a payslip</h2><form method="post" action="/query">`)
		h.raw(`<label for="name">Name</label><input id="name" name="name" required autocomplete="name">`)
		h.raw(`<label for="card_last6">Last 6 digits of bank card</label>`)
		h.raw(`<input id="card_last6" name="card_last6" required maxlength="6" inputmode="numeric">`)
		h.raw(`<label for="month">Month</label>`)
		if len(months) > 0 {
			h.raw(`<select id="month" name="month" required>`)
			for _, m := range months {
				h.raw(`<option value="`)
				h.text(m)
				h.raw(`">`)
				h.text(m)
				h.raw(`</option>`)
			}
			h.raw(`</select>`)
		} else {
			h.raw(`<input id="month" name="month" type="month" required placeholder="2024-01">`)
			h.raw(`<p class="muted">No salary data has been uploaded yet.</p>`)
		}
		h.raw(`<button type="submit">Search</button></form></section>`)
		return h.err
	}))
}

func payslipPage(p pageData, slip *payroll.Payslip) templ.Component {
	return layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section><h2>`)
		h.text(slip.EmployeeName)
		h.raw(` <span class="muted">`)
		h.text(slip.Month)
		h.raw(`</span></h2><table><thead><tr><th>Item</th><th>Amount</th></tr></thead><tbody>`)
		for _, item := range slip.Items {
			h.raw(`<tr><td>`)
			h.text(item.Name)
			h.raw(`</td><td class="num">`)
			h.text(item.Value)
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table><p><a href="/">Back</a></p></section>`)
		return h.err
	}))
}

func loginPage(p pageData) templ.Component {
	return layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section><h2>Administrator login</h2><form method="post" action="/login">`)
		h.raw(`<label for="username">Username</label><input id="username" name="username" required autocomplete="username">`)
		h.raw(`<label for="password">Password</label><input id="password" name="password" type="password" required autocomplete="current-password">`)
		h.raw(`<button type="submit">Log in</button></form></section>`)
		return h.err
	}))
}

type adminData struct {
	Months      []string
	Imports     []payroll.ImportSummary
	Limiter     payroll.LimiterStatus
	MaxFileSize int64
}

func adminPage(p pageData, d adminData) templ.Component {
	return layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section><h2>Upload salary workbook</h2>`)
		h.raw(`<form method="post" action="/upload" enctype="multipart/form-data">`)
		h.raw(`<label for="month_value">Month</label><input id="month_value" name="month_value" type="month" required placeholder="2024-01">`)
		h.raw(`<label for="file">Workbook (.xlsx)</label><input id="file" name="file" type="file" required accept=".xlsx,.gz,.bz2,.xz,.zst,.lz4">`)
		h.raw(`<p class="muted">Required columns: `)
		h.text(payroll.ColumnName + ", " + payroll.ColumnCard)
		h.raw(`. Maximum size `)
		h.text(strconv.FormatInt(d.MaxFileSize>>20, 10))
		h.raw(` MB. Uploading a month again replaces it.</p>`)
		h.raw(`<button type="submit">Upload</button></form>`)
		h.raw(`<p class="muted">Imports running: `)
		h.text(strconv.Itoa(d.Limiter.Active) + " / " + strconv.Itoa(d.Limiter.MaxConcurrent))
		h.raw(`</p></section>`)

		h.raw(`<section><h2>Recent imports</h2>`)
		if len(d.Imports) == 0 {
			h.raw(`<p class="muted">Nothing imported yet.</p>`)
		} else {
			h.raw(`<table><thead><tr><th>Month</th><th>File</th><th>Records</th><th>New employees</th><th>Imported</th></tr></thead><tbody>`)
			for _, imp := range d.Imports {
				h.raw(`<tr><td>`)
				h.text(imp.Month)
				h.raw(`</td><td>`)
				h.text(imp.FileName)
				h.raw(`</td><td class="num">`)
				h.text(strconv.Itoa(imp.Records))
				h.raw(`</td><td class="num">`)
				h.text(strconv.Itoa(imp.NewEmployees))
				h.raw(`</td><td>`)
				h.text(imp.ImportedAt.Local().Format(time.DateTime))
				h.raw(`</td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		if len(d.Months) > 0 {
			h.raw(`<p class="muted">Months on file: `)
			for i, m := range d.Months {
				if i > 0 {
					h.raw(", ")
				}
				h.text(m)
			}
			h.raw(`</p>`)
		}
		h.raw(`</section>`)
		return h.err
	}))
}

func errorPage(msg payroll.UserMessage) templ.Component {
	return layout(pageData{Title: "Error"}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section><h2>`)
		h.text(msg.Message)
		h.raw(`</h2>`)
		if msg.Action != "" {
			h.raw(`<p>`)
			h.text(msg.Action)
			h.raw(`</p>`)
		}
		h.raw(`<p class="muted">Code: `)
		h.text(msg.Code)
		h.raw(`</p><p><a href="/">Home</a></p></section>`)
		return h.err
	}))
}
