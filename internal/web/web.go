// Package web renders the server-side HTML pages: the landing page and the now-playing dashboard.
//
// Templates are embedded and parsed once. Each page is the "layout" template wrapping a page-specific
// "content" block, so pages are parsed into separate template sets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/321david123/spotify-feature/internal/formatter"
	"github.com/321david123/spotify-feature/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by [Renderer.Render].
const (
	PageIndex     = "index"
	PageDashboard = "dashboard"
)

// Dashboard is the view model for the dashboard page.
type Dashboard struct {
	Title         string
	Authenticated bool
	Snapshot      models.PlaybackSnapshot
	Error         string
}

// Index is the view model for the landing page.
type Index struct {
	Title string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
	now   func() time.Time
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template), now: time.Now}

	funcs := template.FuncMap{
		"formatTime": formatter.FormatTime,
		"headline":   formatter.Headline,
		"percent":    percent,
		"playedAt": func(s *string) string {
			if s == nil {
				return ""
			}
			return formatter.FormatPlayedAt(*s, r.now())
		},
	}

	for _, page := range []string{PageIndex, PageDashboard} {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render writes page to w with data. Output is buffered so a template error never leaves a partial page.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// percent returns progress as a whole percentage of duration, clamped to 0..100.
func percent(progress, duration int) int {
	if duration <= 0 {
		return 0
	}
	return max(0, min(100, progress*100/duration))
}
