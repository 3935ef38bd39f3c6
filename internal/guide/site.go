package guide

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"slices"
	"strings"
	"sync"
)

//go:embed content/*.md
var embedded embed.FS

// DefaultContent returns the guide shipped inside the binary.
func DefaultContent() fs.FS {
	sub, err := fs.Sub(embedded, "content")
	if err != nil {
		// The content directory is part of the build.
		panic(err)
	}
	return sub
}

// Site holds the parsed chapters and swaps them atomically on reload,
// so requests during a rebuild keep seeing a consistent guide.
type Site struct {
	mu       sync.RWMutex
	chapters []*Chapter
	bySlug   map[string]*Chapter
}

// NewSite parses every chapter in fsys.
func NewSite(fsys fs.FS) (*Site, error) {
	s := &Site{}
	if err := s.Load(fsys); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-parses the chapters and swaps them in. On error the site
// keeps serving what it had, so a half-saved file cannot blank the
// guide.
func (s *Site) Load(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return fmt.Errorf("guide: list chapters: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("guide: no chapters found")
	}
	slices.Sort(names)

	chapters := make([]*Chapter, 0, len(names))
	bySlug := make(map[string]*Chapter, len(names))
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("guide: read %s: %w", name, err)
		}
		ch, err := parseChapter(name, src)
		if err != nil {
			return err
		}
		if prev, dup := bySlug[ch.Slug]; dup {
			return fmt.Errorf("guide: slug %q used by both %s and %s", ch.Slug, prev.File, ch.File)
		}
		chapters = append(chapters, ch)
		bySlug[ch.Slug] = ch
	}
	slices.SortStableFunc(chapters, func(a, b *Chapter) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(a.Slug, b.Slug)
	})

	s.mu.Lock()
	s.chapters = chapters
	s.bySlug = bySlug
	s.mu.Unlock()
	return nil
}

// Chapters returns the chapters in reading order.
func (s *Site) Chapters() []*Chapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chapters)
}

// Chapter looks a chapter up by slug.
func (s *Site) Chapter(slug string) (*Chapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.bySlug[slug]
	return ch, ok
}

// First returns the opening chapter.
func (s *Site) First() *Chapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chapters) == 0 {
		return nil
	}
	return s.chapters[0]
}

// pageData is what the layout template renders.
type pageData struct {
	Title      string
	Current    *Chapter
	Chapters   []*Chapter
	Prev, Next *Chapter
	LiveReload bool
}

// WritePage renders one chapter with the sidebar navigation.
func (s *Site) WritePage(w io.Writer, slug string, liveReload bool) error {
	ch, ok := s.Chapter(slug)
	if !ok {
		return fmt.Errorf("guide: no chapter %q", slug)
	}
	chapters := s.Chapters()
	data := pageData{
		Title:      ch.Title,
		Current:    ch,
		Chapters:   chapters,
		LiveReload: liveReload,
	}
	for i, c := range chapters {
		if c.Slug != ch.Slug {
			continue
		}
		if i > 0 {
			data.Prev = chapters[i-1]
		}
		if i < len(chapters)-1 {
			data.Next = chapters[i+1]
		}
	}
	return pageTmpl.Execute(w, data)
}

var pageTmpl = template.Must(template.New("guide").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · weft guide</title>
<style>
  body { margin: 0; font-family: system-ui, sans-serif; line-height: 1.6; color: #1a202c; }
  .wrap { display: flex; min-height: 100vh; }
  nav { width: 240px; flex-shrink: 0; background: #f7fafc; border-right: 1px solid #e2e8f0; padding: 24px 0; }
  nav h1 { font-size: 16px; margin: 0 24px 16px; }
  nav a { display: block; padding: 6px 24px; color: #4a5568; text-decoration: none; font-size: 14px; }
  nav a.current { color: #2b6cb0; font-weight: 600; background: #ebf8ff; }
  main { flex: 1; max-width: 760px; padding: 40px 48px; }
  main h1 { margin-top: 0; }
  pre { background: #f7fafc; border: 1px solid #e2e8f0; border-radius: 6px; padding: 12px 16px; overflow-x: auto; font-size: 13px; }
  code { font-family: ui-monospace, monospace; font-size: 0.92em; }
  table { border-collapse: collapse; }
  th, td { border: 1px solid #e2e8f0; padding: 6px 12px; text-align: left; font-size: 14px; }
  .pager { display: flex; justify-content: space-between; margin-top: 48px; border-top: 1px solid #e2e8f0; padding-top: 16px; }
  .pager a { color: #2b6cb0; text-decoration: none; }
</style>
</head>
<body>
<div class="wrap">
<nav>
<h1>weft guide</h1>
{{range .Chapters}}<a href="/{{.Slug}}"{{if eq .Slug $.Current.Slug}} class="current"{{end}}>{{.Title}}</a>
{{end}}</nav>
<main>
{{.Current.HTML}}
<div class="pager">
<span>{{with .Prev}}<a href="/{{.Slug}}">&larr; {{.Title}}</a>{{end}}</span>
<span>{{with .Next}}<a href="/{{.Slug}}">{{.Title}} &rarr;</a>{{end}}</span>
</div>
</main>
</div>
{{if .LiveReload}}<script>
(function () {
  function connect() {
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(proto + location.host + '/weft/reload');
    ws.onmessage = function (e) {
      var msg;
      try { msg = JSON.parse(e.data); } catch (err) { return; }
      if (msg.type === 'reload') location.reload();
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
{{end}}</body>
</html>
`
