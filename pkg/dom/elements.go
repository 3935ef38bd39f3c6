package dom

// voidElements render without a closing tag and cannot have children.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoid reports whether tag is a void element.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// El creates an element node with the given tag. Arguments may be
// Prop, []Prop, EventHandler, *Node, []*Node, Component, string (a
// text child), or nil (ignored, so conditionals compose cleanly).
// Fragment children are spliced into the element's child list.
func El(tag string, args ...any) *Node {
	n := &Node{
		Kind:  KindElement,
		Tag:   tag,
		Props: make(Props),
	}
	for _, arg := range args {
		apply(n, arg)
	}
	return n
}

func apply(n *Node, arg any) {
	switch v := arg.(type) {
	case nil:

	case Prop:
		setProp(n, v)

	case []Prop:
		for _, p := range v {
			setProp(n, p)
		}

	case EventHandler:
		n.Props[v.Event] = v.Fn

	case *Node:
		appendChild(n, v)

	case []*Node:
		for _, child := range v {
			appendChild(n, child)
		}

	case Component:
		n.Children = append(n.Children, &Node{Kind: KindComponent, Comp: v})

	case string:
		appendChild(n, Text(v))
	}
}

// setProp merges one Prop into the node. Empty props (from ClassIf and
// friends) are dropped, and "key" is hoisted onto Node.Key instead of
// entering Props.
func setProp(n *Node, p Prop) {
	if p.Key == "" {
		return
	}
	if p.Key == "key" {
		if s, ok := p.Value.(string); ok {
			n.Key = s
		}
		return
	}
	n.Props[p.Key] = p.Value
}

// appendChild adds a child, splicing fragments, dropping empty text,
// and merging adjacent text nodes. The text normalization keeps the
// child list aligned one-to-one with the DOM nodes a browser parses
// out of the rendered HTML, which indexed patch addressing relies on.
func appendChild(n *Node, child *Node) {
	if child == nil {
		return
	}
	if child.Kind == KindFragment {
		for _, c := range child.Children {
			appendChild(n, c)
		}
		return
	}
	if child.Kind == KindText {
		if child.Text == "" {
			return
		}
		if last := len(n.Children) - 1; last >= 0 && n.Children[last].Kind == KindText {
			// Merge into a fresh node; the existing child may be shared.
			n.Children[last] = Text(n.Children[last].Text + child.Text)
			return
		}
	}
	n.Children = append(n.Children, child)
}

// Document structure

func Html(args ...any) *Node   { return El("html", args...) }
func Head(args ...any) *Node   { return El("head", args...) }
func Body(args ...any) *Node   { return El("body", args...) }
func Title(args ...any) *Node  { return El("title", args...) }
func Meta(args ...any) *Node   { return El("meta", args...) }
func Link(args ...any) *Node   { return El("link", args...) }
func Script(args ...any) *Node { return El("script", args...) }

// Sectioning

func Header(args ...any) *Node  { return El("header", args...) }
func Footer(args ...any) *Node  { return El("footer", args...) }
func Main(args ...any) *Node    { return El("main", args...) }
func Nav(args ...any) *Node     { return El("nav", args...) }
func Section(args ...any) *Node { return El("section", args...) }
func Article(args ...any) *Node { return El("article", args...) }
func Aside(args ...any) *Node   { return El("aside", args...) }
func H1(args ...any) *Node      { return El("h1", args...) }
func H2(args ...any) *Node      { return El("h2", args...) }
func H3(args ...any) *Node      { return El("h3", args...) }
func H4(args ...any) *Node      { return El("h4", args...) }
func H5(args ...any) *Node      { return El("h5", args...) }
func H6(args ...any) *Node      { return El("h6", args...) }

// Grouping content

func Div(args ...any) *Node        { return El("div", args...) }
func P(args ...any) *Node          { return El("p", args...) }
func Span(args ...any) *Node       { return El("span", args...) }
func Pre(args ...any) *Node        { return El("pre", args...) }
func Blockquote(args ...any) *Node { return El("blockquote", args...) }
func Ul(args ...any) *Node         { return El("ul", args...) }
func Ol(args ...any) *Node         { return El("ol", args...) }
func Li(args ...any) *Node         { return El("li", args...) }
func Dl(args ...any) *Node         { return El("dl", args...) }
func Dt(args ...any) *Node         { return El("dt", args...) }
func Dd(args ...any) *Node         { return El("dd", args...) }
func Hr(args ...any) *Node         { return El("hr", args...) }
func Br(args ...any) *Node         { return El("br", args...) }
func Figure(args ...any) *Node     { return El("figure", args...) }
func Figcaption(args ...any) *Node { return El("figcaption", args...) }

// Inline text

func A(args ...any) *Node      { return El("a", args...) }
func Strong(args ...any) *Node { return El("strong", args...) }
func Em(args ...any) *Node     { return El("em", args...) }
func B(args ...any) *Node      { return El("b", args...) }
func I(args ...any) *Node      { return El("i", args...) }
func Small(args ...any) *Node  { return El("small", args...) }
func Mark(args ...any) *Node   { return El("mark", args...) }
func Sub(args ...any) *Node    { return El("sub", args...) }
func Sup(args ...any) *Node    { return El("sup", args...) }
func Code(args ...any) *Node   { return El("code", args...) }
func Kbd(args ...any) *Node    { return El("kbd", args...) }
func Abbr(args ...any) *Node   { return El("abbr", args...) }
func Time(args ...any) *Node   { return El("time", args...) }

// Forms

func Form(args ...any) *Node     { return El("form", args...) }
func Input(args ...any) *Node    { return El("input", args...) }
func Textarea(args ...any) *Node { return El("textarea", args...) }
func Select(args ...any) *Node   { return El("select", args...) }
func Option(args ...any) *Node   { return El("option", args...) }
func Optgroup(args ...any) *Node { return El("optgroup", args...) }
func Button(args ...any) *Node   { return El("button", args...) }
func Label(args ...any) *Node    { return El("label", args...) }
func Fieldset(args ...any) *Node { return El("fieldset", args...) }
func Legend(args ...any) *Node   { return El("legend", args...) }
func Datalist(args ...any) *Node { return El("datalist", args...) }
func Progress(args ...any) *Node { return El("progress", args...) }
func Meter(args ...any) *Node    { return El("meter", args...) }

// Tables

func Table(args ...any) *Node    { return El("table", args...) }
func Thead(args ...any) *Node    { return El("thead", args...) }
func Tbody(args ...any) *Node    { return El("tbody", args...) }
func Tfoot(args ...any) *Node    { return El("tfoot", args...) }
func Tr(args ...any) *Node       { return El("tr", args...) }
func Th(args ...any) *Node       { return El("th", args...) }
func Td(args ...any) *Node       { return El("td", args...) }
func Caption(args ...any) *Node  { return El("caption", args...) }
func Colgroup(args ...any) *Node { return El("colgroup", args...) }
func Col(args ...any) *Node      { return El("col", args...) }

// Media

func Img(args ...any) *Node     { return El("img", args...) }
func Picture(args ...any) *Node { return El("picture", args...) }
func Source(args ...any) *Node  { return El("source", args...) }
func Video(args ...any) *Node   { return El("video", args...) }
func Audio(args ...any) *Node   { return El("audio", args...) }
func Track(args ...any) *Node   { return El("track", args...) }
func Iframe(args ...any) *Node  { return El("iframe", args...) }
func Canvas(args ...any) *Node  { return El("canvas", args...) }
func Svg(args ...any) *Node     { return El("svg", args...) }

// Interactive

func Details(args ...any) *Node { return El("details", args...) }
func Summary(args ...any) *Node { return El("summary", args...) }
func Dialog(args ...any) *Node  { return El("dialog", args...) }
func Menu(args ...any) *Node    { return El("menu", args...) }
