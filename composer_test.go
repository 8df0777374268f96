package views

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// section writes text into a section of h, failing the template on error.
func section(h Handle, name string, chunks ...string) error {
	if err := h.Open(name); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if chunk == "@parent" {
			if err := h.Super(); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(h, chunk); err != nil {
			return err
		}
	}
	_, err := h.Close()
	return err
}

func dataString(data Data) string {
	pairs := make([]string, 0, len(data))
	for _, key := range data.Keys() {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, data[key]))
	}
	return strings.Join(pairs, ", ")
}

var inheritanceTemplates = Templates{
	"base": func(h Handle, data Data) error {
		_, err := fmt.Fprintf(h, "<header>\n    <h1>%s</h1>\n    %s\n</header>\n<main>\n    %s\n</main>\n",
			h.Commit("title"), h.Commit("excerpt"), h.Commit("body"))
		return err
	},
	"article": func(h Handle, data Data) error {
		if err := h.Extend("base"); err != nil {
			return err
		}
		if err := section(h, "title", "Article title"); err != nil {
			return err
		}
		if err := section(h, "excerpt", "<p>This is an excerpt.</p>"); err != nil {
			return err
		}
		if err := section(h, "body", "<p>This is a body.</p>"); err != nil {
			return err
		}
		_, err := io.WriteString(h, "\n<p>Some final note.</p>\n")
		return err
	},
	"custom": func(h Handle, data Data) error {
		if err := h.Extend("/article/"); err != nil {
			return err
		}
		if err := section(h, "title", fmt.Sprint(data["title"])); err != nil {
			return err
		}
		return section(h, "body",
			"\n<p>Prepend some content.</p>\n",
			"@parent",
			"\n<p>Append some content.</p>\n",
		)
	},
}

func TestComposer_PlainViewIsNormalized(t *testing.T) {
	f := NewFactory(Templates{
		"plain": func(h Handle, data Data) error {
			_, err := io.WriteString(h, "\n\n   <p>x</p>\n")
			return err
		},
	})

	out, err := f.Render("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", out)

	out, err = f.Render("plain", Data{"unused": 1, "other": "y"})
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", out)
}

func TestComposer_Normalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"\n\n   <p>x</p>\n", "<p>x</p>"},
		{"<main>\n\n\n\t  <p>a</p>\n    <p>b</p>\n</main>", "<main>\n<p>a</p>\n<p>b</p>\n</main>"},
		{"a  b\n", "a  b"},
		{"  \n", ""},
		{"a\n \n \nb", "a\nb"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.in), "normalize(%q)", tt.in)
	}
}

func TestComposer_Extend(t *testing.T) {
	f := NewFactory(inheritanceTemplates)

	out, err := f.Render("article", nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"<header>",
		"<h1>Article title</h1>",
		"<p>This is an excerpt.</p>",
		"</header>",
		"<main>",
		"<p>This is a body.</p>",
		"</main>",
		"<p>Some final note.</p>",
	}, "\n"), out)
}

func TestComposer_ExtendGrandchild(t *testing.T) {
	f := NewFactory(inheritanceTemplates)

	out, err := f.Render("custom", Data{"title": "My title"})
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"<header>",
		"<h1>My title</h1>",
		"<p>This is an excerpt.</p>",
		"</header>",
		"<main>",
		"<p>Prepend some content.</p>",
		"<p>This is a body.</p>",
		"<p>Append some content.</p>",
		"</main>",
		"<p>Some final note.</p>",
	}, "\n"), out)
}

func TestComposer_OverrideReachesGrandparentThroughUntouchedLevel(t *testing.T) {
	f := NewFactory(Templates{
		"grandparent": func(h Handle, data Data) error {
			if err := h.Open("aside"); err != nil {
				return err
			}
			io.WriteString(h, "original")
			content, err := h.Show()
			if err != nil {
				return err
			}
			_, err = io.WriteString(h, "["+content+"]")
			return err
		},
		"parent": func(h Handle, data Data) error {
			return h.Extend("grandparent")
		},
		"child": func(h Handle, data Data) error {
			if err := h.Extend("parent"); err != nil {
				return err
			}
			return section(h, "aside", "before ", "@parent", " after")
		},
	})

	out, err := f.Render("child", nil)
	require.NoError(t, err)
	assert.Equal(t, "[before original after]", out)
}

func TestComposer_ParentMarkerPropagatesTwoLevels(t *testing.T) {
	f := NewFactory(Templates{
		"root": func(h Handle, data Data) error {
			if err := section(h, "nav", "<a>root</a>"); err != nil {
				return err
			}
			_, err := io.WriteString(h, h.Commit("nav"))
			return err
		},
		"middle": func(h Handle, data Data) error {
			if err := h.Extend("root"); err != nil {
				return err
			}
			return section(h, "nav", "@parent", "<a>middle</a>")
		},
		"leaf": func(h Handle, data Data) error {
			if err := h.Extend("middle"); err != nil {
				return err
			}
			return section(h, "nav", "@parent", "<a>leaf</a>")
		},
	})

	out, err := f.Render("leaf", nil)
	require.NoError(t, err)
	assert.Equal(t, "<a>root</a><a>middle</a><a>leaf</a>", out)
}

func TestComposer_CommitWhileComposing(t *testing.T) {
	f := NewFactory(Templates{
		"page": func(h Handle, data Data) error {
			if err := section(h, "greeting", "hi"); err != nil {
				return err
			}
			_, err := io.WriteString(h, "<b>"+h.Commit("greeting")+"</b>")
			return err
		},
	})

	out, err := f.Render("page", nil)
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", out)
}

func TestComposer_CyclicInheritance(t *testing.T) {
	f := NewFactory(Templates{
		"a":    func(h Handle, data Data) error { return h.Extend("b") },
		"b":    func(h Handle, data Data) error { return h.Extend("a") },
		"self": func(h Handle, data Data) error { return h.Extend("self") },
	})

	_, err := f.Render("a", nil)
	require.ErrorIs(t, err, ErrCyclicInheritance)
	var viewErr *ViewError
	require.ErrorAs(t, err, &viewErr)
	assert.Equal(t, "a", viewErr.Path)
	assert.Contains(t, err.Error(), "a -> b -> a")

	_, err = f.Render("self", nil)
	assert.ErrorIs(t, err, ErrCyclicInheritance)
}

func TestComposer_ViewNotFound(t *testing.T) {
	f := NewFactory(Templates{
		"orphan": func(h Handle, data Data) error { return h.Extend("layouts/missing") },
	})

	_, err := f.Render("missing", nil)
	require.ErrorIs(t, err, ErrViewNotFound)
	var viewErr *ViewError
	require.ErrorAs(t, err, &viewErr)
	assert.Equal(t, "missing", viewErr.Path)

	_, err = f.Render("orphan", nil)
	require.ErrorIs(t, err, ErrViewNotFound)
	require.ErrorAs(t, err, &viewErr)
	assert.Equal(t, "layouts/missing", viewErr.Path)
}

func TestComposer_InvalidState(t *testing.T) {
	tests := map[string]TemplateFunc{
		"nested": func(h Handle, data Data) error {
			if err := h.Open("a"); err != nil {
				return err
			}
			return h.Open("b")
		},
		"close": func(h Handle, data Data) error {
			_, err := h.Close()
			return err
		},
		"show": func(h Handle, data Data) error {
			_, err := h.Show()
			return err
		},
		"super": func(h Handle, data Data) error {
			return h.Super()
		},
		"unclosed": func(h Handle, data Data) error {
			return h.Open("a")
		},
		"extend-twice": func(h Handle, data Data) error {
			if err := h.Extend("x"); err != nil {
				return err
			}
			return h.Extend("y")
		},
	}
	f := NewFactory(Templates(tests))
	for name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.Render(name, nil)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestComposer_TemplateErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	f := NewFactory(Templates{
		"broken": func(h Handle, data Data) error { return boom },
	})

	_, err := f.Render("broken", nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "[broken] boom", err.Error())
}

func TestComposer_Include(t *testing.T) {
	include := func(h Handle, label string, data Data, merge bool) error {
		if _, err := io.WriteString(h, "<p>"+label+"</p>"); err != nil {
			return err
		}
		out, err := h.Include("partials/pre", data, merge)
		if err != nil {
			return err
		}
		_, err = io.WriteString(h, out)
		return err
	}
	f := NewFactory(Templates{
		"partials/pre": func(h Handle, data Data) error {
			_, err := io.WriteString(h, "<pre>"+dataString(data)+"</pre>")
			return err
		},
		"page": func(h Handle, data Data) error {
			custom := Data{"b": "hello", "c": "baz"}
			if err := include(h, "Include with inherited data:", nil, true); err != nil {
				return err
			}
			if err := include(h, "Include with custom merged data:", custom, true); err != nil {
				return err
			}
			return include(h, "Include with custom data without merging:", custom, false)
		},
	})

	out, err := f.Render("page", Data{"a": "foo", "b": "bar"})
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"<p>Include with inherited data:</p>",
		"<pre>a=foo, b=bar</pre>",
		"<p>Include with custom merged data:</p>",
		"<pre>a=foo, b=hello, c=baz</pre>",
		"<p>Include with custom data without merging:</p>",
		"<pre>b=hello, c=baz</pre>",
	}, "\n"), out)
}

func TestComposer_IncludeData(t *testing.T) {
	var seen Data
	caller := Data{"a": 1, "b": 2}
	explicit := Data{"b": 1, "c": 2}
	f := NewFactory(Templates{
		"probe": func(h Handle, data Data) error {
			seen = data
			return nil
		},
	})

	tests := []struct {
		name  string
		data  Data
		merge bool
		want  Data
	}{
		{"no data", nil, true, Data{"a": 1, "b": 2}},
		{"no data without merge", nil, false, Data{"a": 1, "b": 2}},
		{"merge", explicit, true, Data{"a": 1, "b": 1, "c": 2}},
		{"replace", explicit, false, Data{"b": 1, "c": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newComposer(f.set, "page", caller, nil, nil, 0)
			out, err := c.Include("probe", tt.data, tt.merge)
			require.NoError(t, err)
			assert.Equal(t, "\n\n", out)
			if diff := cmp.Diff(tt.want, seen); diff != "" {
				t.Errorf("included data mismatch (-want +got):\n%s", diff)
			}
		})
	}
	assert.Equal(t, Data{"a": 1, "b": 2}, caller)
}

func TestComposer_IncludeInsideSection(t *testing.T) {
	f := NewFactory(Templates{
		"layout": func(h Handle, data Data) error {
			_, err := io.WriteString(h, "<aside>"+h.Commit("sidebar")+"</aside>")
			return err
		},
		"partials/menu": func(h Handle, data Data) error {
			_, err := io.WriteString(h, "<ul></ul>")
			return err
		},
		"page": func(h Handle, data Data) error {
			if err := h.Extend("layout"); err != nil {
				return err
			}
			if err := h.Open("sidebar"); err != nil {
				return err
			}
			out, err := h.Include("partials/menu", nil, true)
			if err != nil {
				return err
			}
			io.WriteString(h, out)
			_, err = h.Close()
			return err
		},
	})

	out, err := f.Render("page", nil)
	require.NoError(t, err)
	assert.Equal(t, "<aside>\n<ul></ul>\n</aside>", out)
}

func TestComposer_IncludeDepth(t *testing.T) {
	var tree TemplateFunc = func(h Handle, data Data) error {
		n := data["n"].(int)
		fmt.Fprintf(h, "<li>%d", n)
		if n > 0 {
			out, err := h.Include("tree", Data{"n": n - 1}, true)
			if err != nil {
				return err
			}
			io.WriteString(h, out)
		}
		_, err := io.WriteString(h, "</li>")
		return err
	}
	f := NewFactory(Templates{
		"tree": tree,
		"loop": func(h Handle, data Data) error {
			_, err := h.Include("loop", nil, true)
			return err
		},
	}, WithMaxIncludeDepth(5))

	out, err := f.Render("tree", Data{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, "<li>2\n<li>1\n<li>0</li>\n</li>\n</li>", out)

	_, err = f.Render("loop", nil)
	assert.ErrorIs(t, err, ErrIncludeDepth)
}

func TestComposer_IncludedViewMayExtend(t *testing.T) {
	f := NewFactory(Templates{
		"card-layout": func(h Handle, data Data) error {
			_, err := io.WriteString(h, "<div class=card>"+h.Commit("content")+"</div>")
			return err
		},
		"card": func(h Handle, data Data) error {
			if err := h.Extend("card-layout"); err != nil {
				return err
			}
			return section(h, "content", fmt.Sprint(data["label"]))
		},
		"page": func(h Handle, data Data) error {
			if err := section(h, "content", "page content"); err != nil {
				return err
			}
			out, err := h.Include("card", Data{"label": "card"}, true)
			if err != nil {
				return err
			}
			_, err = io.WriteString(h, h.Commit("content")+out)
			return err
		},
	})

	out, err := f.Render("page", nil)
	require.NoError(t, err)
	assert.Equal(t, "page content\n<div class=card>card</div>", out)
}

func TestComposer_PathIsNormalized(t *testing.T) {
	f := NewFactory(Templates{
		"subfolder/view-j": func(h Handle, data Data) error {
			_, err := io.WriteString(h, "<p>Hello, "+h.Path()+"!</p>")
			return err
		},
	})

	for _, path := range []string{"subfolder/view-j", "/subfolder/view-j", "/subfolder/view-j/", "subfolder/view-j/"} {
		out, err := f.Render(path, nil)
		require.NoError(t, err, path)
		assert.Equal(t, "<p>Hello, subfolder/view-j!</p>", out, path)
	}
}

func TestComposer_Deterministic(t *testing.T) {
	f := NewFactory(inheritanceTemplates)
	first, err := f.Render("custom", Data{"title": "x"})
	require.NoError(t, err)
	for range 5 {
		out, err := f.Render("custom", Data{"title": "x"})
		require.NoError(t, err)
		assert.Equal(t, first, out)
	}
}

func TestComposer_DebugLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := NewFactory(inheritanceTemplates, WithLogger(logger)).Render("article", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="view composed" path=base`)
	assert.Contains(t, buf.String(), `msg="view composed" path=article parent=base sections=3 depth=0`)

	buf.Reset()
	logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	_, err = NewFactory(inheritanceTemplates, WithLogger(logger)).Render("article", nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
