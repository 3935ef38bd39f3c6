// Package render turns dom node trees into HTML.
//
// RenderToWriter streams a tree to any io.Writer; RenderToString is
// the buffered convenience. Output is deterministic: attributes are
// written in sorted order, so the same tree always produces the same
// bytes. Text and attribute values are escaped; Raw nodes are written
// verbatim.
//
// Elements that carry a ref render it as a data-rid attribute, and
// elements with event handlers render their event names as a data-on
// list. The browser runtime uses both to route DOM events back to the
// session that rendered the page. Handler functions themselves never
// appear in the output.
//
// WritePage wraps a rendered root in a complete document: doctype,
// head with the session resume token meta tag, and the client
// bootstrap script.
package render
