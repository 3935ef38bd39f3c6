// Package dom provides the server-side node tree for Weft.
//
// A Node tree is an in-memory description of the UI. It lives on the
// server: components build trees in their Render methods, the render
// package serializes trees to HTML for the first paint, and the live
// package diffs successive trees to stream minimal patches to the
// browser.
//
// # Building trees
//
// Elements are created with variadic constructors that accept props,
// event handlers, child nodes, and plain strings:
//
//	dom.Div(dom.Class("card"),
//	    dom.H1(dom.Text("Title")),
//	    dom.Button(dom.OnClick(onSave), "Save"),
//	)
//
// Fragments are spliced into their parent's child list at construction
// time, so If and Map can return groups without introducing wrapper
// elements.
//
// # Refs and diffing
//
// AssignRefs gives every element a stable ref ID (r1, r2, ...) which is
// emitted as a data-rid attribute and used as the patch target. Diff
// compares two trees and returns the patch list that transforms the
// first into the second; refs are carried from the previous tree so
// targets stay stable across renders. Nodes without refs (text, raw
// HTML) are addressed by parent ref plus child index, where the index
// refers to the position in the new tree once earlier patches in the
// list have been applied.
package dom
