package views

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var ValidFileExtensions = []string{".blade", ".tmpl", ".html", ".gohtml"}

// Engine holds loaded files.
type Engine struct {
	dirPrefix   string
	fs          fs.FS
	parsedFiles map[string]*ParsedFile
	templates   map[string]*template.Template
	mu          sync.RWMutex
	FuncMap     template.FuncMap
}

var _ Renderer = (*Engine)(nil)

// NewEngine creates a new engine pointing to a directory with files.
func NewEngine(dir string) *Engine {
	return NewEngineFS(os.DirFS(dir))
}

// NewEngineFS creates a new engine pointing to a filesystem.
// When using embed.Fs, pass the embedded folder as prefix.
func NewEngineFS(fs fs.FS, prefix ...string) *Engine {
	var dirPrefix string
	if len(prefix) > 0 {
		dirPrefix = prefix[0]
	}
	return &Engine{
		dirPrefix:   dirPrefix,
		fs:          fs,
		parsedFiles: map[string]*ParsedFile{},
		templates:   make(map[string]*template.Template),
		FuncMap:     template.FuncMap{},
	}
}

// Load reads all files with a valid extension from the fs.
// Files are only parsed again when their modification time changed,
// and templates whose file disappeared are dropped.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := map[string]struct{}{}
	err := fs.WalkDir(e.fs, ".", func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(ValidFileExtensions, ext) {
			return nil
		}

		name := e.nameFromPath(path)
		seen[name] = struct{}{}

		stats, err := info.Info()
		if err != nil {
			return err
		}
		if prev, ok := e.parsedFiles[name]; ok && prev.ModTime.Equal(stats.ModTime()) {
			return nil
		}

		raw, err := fs.ReadFile(e.fs, path)
		if err != nil {
			return err
		}
		parsedFile := parseFile(string(raw), stats.ModTime())
		tmpl, err := template.New(name).Funcs(e.funcs(nil)).Parse(parsedFile.Body)
		if err != nil {
			return fmt.Errorf("[%s] %w", name, err)
		}
		e.parsedFiles[name] = parsedFile
		e.templates[name] = tmpl
		return nil
	})
	if err != nil {
		return err
	}

	for name := range e.parsedFiles {
		if _, ok := seen[name]; !ok {
			delete(e.parsedFiles, name)
			delete(e.templates, name)
		}
	}
	return nil
}

// Render executes the template behind path with the view functions bound to h.
func (e *Engine) Render(h Handle, path string, data Data) error {
	name := normalizeName(path)
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: template %s not loaded", ErrViewNotFound, name)
	}
	// Parsed templates are never executed, so every render works on its own clone.
	clone, err := tmpl.Clone()
	if err != nil {
		return err
	}
	return clone.Funcs(e.funcs(h)).Execute(h, data)
}

// GetDebugTemplates returns a map of all loaded templates and their content.
func (e *Engine) GetDebugTemplates() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	debugTemplates := make(map[string]string, len(e.parsedFiles))
	for name, f := range e.parsedFiles {
		debugTemplates[name] = f.Body
	}
	return debugTemplates
}

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// funcs returns the template functions. h is nil while parsing.
func (e *Engine) funcs(h Handle) template.FuncMap {
	funcs := template.FuncMap{
		"sanitize": func(s string) template.HTML {
			return template.HTML(ugcPolicy.Sanitize(s))
		},
		"strip": func(s string) string {
			return strictPolicy.Sanitize(s)
		},
	}
	for name, fn := range e.FuncMap {
		funcs[name] = fn
	}

	funcs["extend"] = func(path string) (string, error) {
		return "", h.Extend(path)
	}
	funcs["section"] = func(name string) (string, error) {
		return "", h.Open(name)
	}
	funcs["endsection"] = func() (string, error) {
		_, err := h.Close()
		return "", err
	}
	funcs["parent"] = func() (string, error) {
		return "", h.Super()
	}
	funcs["show"] = func() (template.HTML, error) {
		content, err := h.Show()
		return template.HTML(content), err
	}
	funcs["yield"] = func(name string, defaultValue ...string) template.HTML {
		if !h.HasSection(name) && len(defaultValue) > 0 {
			return template.HTML(defaultValue[0])
		}
		return template.HTML(h.Commit(name))
	}
	funcs["include"] = func(path string, data ...any) (template.HTML, error) {
		return includeFunc(h, path, data, true)
	}
	funcs["includeIsolated"] = func(path string, data ...any) (template.HTML, error) {
		return includeFunc(h, path, data, false)
	}
	return funcs
}

func includeFunc(h Handle, path string, args []any, merge bool) (template.HTML, error) {
	var data Data
	if len(args) > 0 {
		var err error
		if data, err = toData(args[0]); err != nil {
			return "", err
		}
		// a pipeline that evaluates to nil must not expose the caller context
		if data == nil && !merge {
			data = Data{}
		}
	}
	content, err := h.Include(path, data, merge)
	return template.HTML(content), err
}

// nameFromPath converts a filesystem path to a template name, relative to engine dir.
func (e *Engine) nameFromPath(path string) string {
	rel, err := filepath.Rel(e.dirPrefix, path)
	if err != nil {
		return filepath.Base(path)
	}
	return normalizeName(rel)
}

// normalizeName: remove quotes/spaces and template extensions, normalize slashes
func normalizeName(n string) string {
	n = strings.TrimSpace(n)
	n = strings.Trim(n, `"' `)
	n = filepath.ToSlash(n)
	n = strings.ReplaceAll(n, `\`, "/")
	n = strings.Trim(n, "/")
	// remove ext if present
	if ext := filepath.Ext(n); slices.Contains(ValidFileExtensions, strings.ToLower(ext)) {
		n = strings.TrimSuffix(n, ext)
	}
	return n
}

// WriteDebug writes every translated template to w, sorted by name.
func (e *Engine) WriteDebug(w io.Writer) error {
	debugTemplates := e.GetDebugTemplates()
	for _, name := range slices.Sorted(maps.Keys(debugTemplates)) {
		if _, err := fmt.Fprintf(w, "==> %s <==\n%s\n", name, debugTemplates[name]); err != nil {
			return err
		}
	}
	return nil
}
