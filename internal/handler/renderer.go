package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/DukeRupert/taqa/internal/templ/partials"
)

// Renderer manages template parsing and rendering with isolated template sets.
// It supports two layouts:
//   - "auth" layout for unauthenticated pages (login)
//   - "app" layout for authenticated pages (onboarding, import, customer detail)
//
// Templates are organized as:
//   - layouts/auth.html, layouts/app.html - base layouts
//   - partials/*.html - fragments shared by pages and htmx responses
//   - pages/auth/*.html - auth pages (use auth layout)
//   - pages/*.html - app pages (use app layout)
//   - pages/{onboarding,customers}/*.html - nested app pages
//
// Every render goes through a buffer, so a failing template never leaves a
// half-written page on the wire.
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
	isDev     bool
	mu        sync.RWMutex

	fsys fs.FS
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// TemplatesDir is read from disk and reloaded on every render when IsDev
	// is set. Ignored when FS is provided.
	TemplatesDir string
	FS           fs.FS
	Logger       *slog.Logger
	IsDev        bool
}

// nestedDirs are the app page directories below pages/.
var nestedDirs = []string{"onboarding", "customers"}

// NewRenderer creates a new template renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	fsys := cfg.FS
	if fsys == nil {
		fsys = os.DirFS(cfg.TemplatesDir)
	}

	r := &Renderer{
		templates: make(map[string]*template.Template),
		logger:    cfg.Logger,
		isDev:     cfg.IsDev && cfg.FS == nil,
		fsys:      fsys,
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewRendererFromFS creates a renderer from an embedded filesystem.
func NewRendererFromFS(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	return NewRenderer(RendererConfig{FS: fsys, Logger: logger})
}

func (r *Renderer) loadTemplates() error {
	partialFiles, err := fs.Glob(r.fsys, "partials/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob partials: %w", err)
	}

	// Parse each partial as a standalone template
	for _, partial := range partialFiles {
		partialTmpl, err := template.New("").Funcs(TemplateFuncs()).ParseFS(r.fsys, partial)
		if err != nil {
			return fmt.Errorf("failed to parse partial %s: %w", partial, err)
		}
		r.templates["partial/"+baseName(partial)] = partialTmpl
	}

	layouts := make(map[string]*template.Template, 2)
	for _, name := range []string{"auth", "app"} {
		tmpl, err := template.New(name).Funcs(TemplateFuncs()).ParseFS(r.fsys, path.Join("layouts", name+".html"))
		if err != nil {
			return fmt.Errorf("failed to parse %s layout: %w", name, err)
		}

		// Parse partials into the layout (so pages can use {{template "partial_name"}})
		if len(partialFiles) > 0 {
			tmpl, err = tmpl.ParseFS(r.fsys, partialFiles...)
			if err != nil {
				return fmt.Errorf("failed to parse partials into %s layout: %w", name, err)
			}
		}
		layouts[name] = tmpl
	}

	// Auth pages are stored as "auth/login"
	if err := r.parsePages(layouts["auth"], "pages/auth/*.html", "auth/"); err != nil {
		return err
	}

	// Root app pages are stored as "error", "redirect"
	if err := r.parsePages(layouts["app"], "pages/*.html", ""); err != nil {
		return err
	}

	// Nested pages are stored as "onboarding/wizard", "customers/import"
	for _, dir := range nestedDirs {
		if err := r.parsePages(layouts["app"], path.Join("pages", dir, "*.html"), dir+"/"); err != nil {
			return err
		}
	}

	r.logger.Info("templates loaded", "count", len(r.templates))
	return nil
}

func (r *Renderer) parsePages(base *template.Template, pattern, prefix string) error {
	pages, err := fs.Glob(r.fsys, pattern)
	if err != nil {
		return fmt.Errorf("failed to glob %s: %w", pattern, err)
	}

	for _, page := range pages {
		pageTmpl, err := base.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone template for %s: %w", page, err)
		}

		pageTmpl, err = pageTmpl.ParseFS(r.fsys, page)
		if err != nil {
			return fmt.Errorf("failed to parse page %s: %w", page, err)
		}

		r.templates[prefix+baseName(page)] = pageTmpl
	}
	return nil
}

func baseName(p string) string {
	return strings.TrimSuffix(path.Base(p), path.Ext(p))
}

// Reload reloads all templates. Useful for development.
func (r *Renderer) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates = make(map[string]*template.Template)
	return r.loadTemplates()
}

// Render renders a template to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	// In dev mode, reload templates on each request
	if r.isDev {
		if err := r.Reload(); err != nil {
			return fmt.Errorf("template reload failed: %w", err)
		}
	}

	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	return tmpl.ExecuteTemplate(w, r.getBaseTemplateName(name), data)
}

// RenderHTML renders a template and returns the HTML as a string.
func (r *Renderer) RenderHTML(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderHTTP renders a template with status 200.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data interface{}) {
	r.RenderHTTPStatus(w, name, data, http.StatusOK)
}

// RenderHTTPStatus renders a template directly to an http.ResponseWriter.
// A render failure is replaced by the fallback error page.
func (r *Renderer) RenderHTTPStatus(w http.ResponseWriter, name string, data interface{}, status int) {
	// Render to buffer first to catch errors before writing headers
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		RenderErrorPage(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderComponent renders a templ fragment, followed by an out-of-band
// toast when toast carries a message.
func (r *Renderer) RenderComponent(w http.ResponseWriter, req *http.Request, c templ.Component, toast partials.ToastData) {
	var buf bytes.Buffer
	if err := c.Render(req.Context(), &buf); err != nil {
		r.logger.Error("component render failed", "path", req.URL.Path, "error", err)
		RenderErrorPage(w, err)
		return
	}
	if toast.Message != "" {
		toast.OOB = true
		if err := partials.Toast(toast).Render(req.Context(), &buf); err != nil {
			r.logger.Error("toast render failed", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// getBaseTemplateName determines which base template to execute.
func (r *Renderer) getBaseTemplateName(name string) string {
	switch {
	case strings.HasPrefix(name, "auth/"):
		return "auth"
	case strings.HasPrefix(name, "partial/"):
		return strings.TrimPrefix(name, "partial/")
	default:
		return "app"
	}
}

// ListTemplates returns a list of all loaded template names.
// Useful for debugging.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

// RenderErrorPage writes the bare fallback page used when a page could not
// be rendered. It depends on no template, so it cannot fail the same way.
func RenderErrorPage(w http.ResponseWriter, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Error</title></head>
<body>
<main role="alert">
<h1>Something went wrong</h1>
<p>Error rendering page: %s</p>
</main>
</body>
</html>`, template.HTMLEscapeString(msg))
}
