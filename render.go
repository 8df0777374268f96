package views

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin/render"
)

var _ render.HTMLRender = (*HTMLRender)(nil)

// HTMLRender gin HTMLRender compatible
type HTMLRender struct {
	f *Factory
}

// NewHTMLRender create a new HTMLRender
func NewHTMLRender(f *Factory) *HTMLRender {
	return &HTMLRender{f: f}
}

// Instance returns a new render.Render
func (h *HTMLRender) Instance(name string, data any) render.Render {
	return &Render{view: h.f.View(name), data: data}
}

// Render renders a view with data and writes it to w
type Render struct {
	view *View
	data any
}

// Cached returns a Render that goes through the factory's cache store.
func (r *Render) Cached(ttl time.Duration, key ...string) *Render {
	r.view.Cache(ttl, key...)
	return r
}

// Render renders the view and writes it to w. Nothing is written when rendering fails.
func (r *Render) Render(w http.ResponseWriter) error {
	data, err := toData(r.data)
	if err != nil {
		return err
	}
	content, err := r.view.Render(data)
	if err != nil {
		return err
	}
	r.WriteContentType(w)
	_, err = io.WriteString(w, content)
	return err
}

// WriteContentType write an HTML content type to the response header if not set
func (r *Render) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = []string{"text/html; charset=utf-8"}
	}
}
