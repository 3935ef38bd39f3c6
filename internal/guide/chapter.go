package guide

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Chapter is one rendered page of the migration guide.
type Chapter struct {
	Title string
	Slug  string
	Order int
	HTML  template.HTML

	// File is the source file name the chapter came from.
	File string
}

// chapterMeta is the YAML front matter a chapter may carry. Every
// field is optional; parseChapter derives the gaps from the file name.
type chapterMeta struct {
	Title string `yaml:"title"`
	Slug  string `yaml:"slug"`
	Order int    `yaml:"order"`
}

// engine is shared across parses; goldmark instances are stateless.
var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// parseChapter renders one Markdown source into a Chapter. Front
// matter supplies title, slug, and order; missing values fall back to
// the file name, so a bare directory of numbered files still makes a
// readable guide.
func parseChapter(name string, src []byte) (*Chapter, error) {
	var meta chapterMeta
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		return nil, fmt.Errorf("guide: front matter of %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := engine.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("guide: render %s: %w", name, err)
	}

	ch := &Chapter{
		Title: meta.Title,
		Slug:  meta.Slug,
		Order: meta.Order,
		HTML:  template.HTML(buf.String()),
		File:  name,
	}
	if ch.Title == "" {
		ch.Title = titleFromName(name)
	}
	if ch.Slug == "" {
		ch.Slug = slugify(ch.Title)
	}
	if ch.Order == 0 {
		ch.Order = orderFromName(name)
	}
	if ch.Slug == "" {
		return nil, fmt.Errorf("guide: %s has no usable title or slug", name)
	}
	return ch, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses everything outside [a-z0-9] into
// single dashes.
func slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

var namePrefix = regexp.MustCompile(`^\d+[-_]?`)

// titleFromName turns "03-manual-fixes.md" into "Manual fixes".
func titleFromName(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = namePrefix.ReplaceAllString(base, "")
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

// orderFromName reads a leading number, "03-manual-fixes.md" sorting
// as 3.
func orderFromName(name string) int {
	base := path.Base(name)
	digits := 0
	for digits < len(base) && base[digits] >= '0' && base[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0
	}
	n, err := strconv.Atoi(base[:digits])
	if err != nil {
		return 0
	}
	return n
}
