package render

import (
	"fmt"
	"io"
	"net/http"

	"github.com/weft-dev/weft/pkg/dom"
)

// DefaultClientScript is the path the live server serves the browser
// runtime under.
const DefaultClientScript = "/weft/client.js"

// ResumeMetaName names the meta tag carrying the session resume
// token. The browser runtime reads it back when reconnecting.
const ResumeMetaName = "weft-resume"

// Page describes a complete HTML document around a rendered root.
// The zero value renders a minimal valid skeleton.
type Page struct {
	Title        string
	Lang         string      // html lang attribute, defaults to "en"
	Head         []*dom.Node // extra head nodes (meta, link, style)
	Styles       []string    // external stylesheet URLs
	Body         *dom.Node   // document content
	ResumeToken  string      // session resume token; the meta tag is omitted when empty
	ClientScript string      // browser runtime URL, defaults to DefaultClientScript
}

// WritePage writes the full HTML document for p. When w implements
// http.Flusher the head and body are flushed as they complete, so
// the browser starts fetching assets before the body finishes.
func WritePage(w io.Writer, p Page) error {
	flusher, _ := w.(http.Flusher)

	lang := p.Lang
	if lang == "" {
		lang = "en"
	}
	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n"+`<html lang="%s">`+"\n", escapeAttr(lang)); err != nil {
		return err
	}
	if err := writeHead(w, p); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}

	if _, err := io.WriteString(w, "<body>\n"); err != nil {
		return err
	}
	if err := RenderToWriter(w, p.Body); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}

	script := p.ClientScript
	if script == "" {
		script = DefaultClientScript
	}
	if _, err := fmt.Fprintf(w, "\n"+`<script src="%s" defer></script>`+"\n", escapeAttr(script)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "</body>\n</html>\n"); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

func writeHead(w io.Writer, p Page) error {
	if _, err := io.WriteString(w, "<head>\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `  <meta charset="utf-8">`+"\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `  <meta name="viewport" content="width=device-width, initial-scale=1">`+"\n"); err != nil {
		return err
	}
	if p.Title != "" {
		if _, err := fmt.Fprintf(w, "  <title>%s</title>\n", escapeHTML(p.Title)); err != nil {
			return err
		}
	}
	if p.ResumeToken != "" {
		if _, err := fmt.Fprintf(w, `  <meta name="`+ResumeMetaName+`" content="%s">`+"\n", escapeAttr(p.ResumeToken)); err != nil {
			return err
		}
	}
	for _, href := range p.Styles {
		if _, err := fmt.Fprintf(w, `  <link rel="stylesheet" href="%s">`+"\n", escapeAttr(href)); err != nil {
			return err
		}
	}
	for _, node := range p.Head {
		if _, err := io.WriteString(w, "  "); err != nil {
			return err
		}
		if err := RenderToWriter(w, node); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</head>\n")
	return err
}
