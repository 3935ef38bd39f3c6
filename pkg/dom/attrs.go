package dom

import "strings"

// booleanAttrs are attributes whose presence alone is the value.
var booleanAttrs = map[string]bool{
	"allowfullscreen": true,
	"async":           true,
	"autofocus":       true,
	"autoplay":        true,
	"checked":         true,
	"controls":        true,
	"default":         true,
	"defer":           true,
	"disabled":        true,
	"formnovalidate":  true,
	"hidden":          true,
	"inert":           true,
	"loop":            true,
	"multiple":        true,
	"muted":           true,
	"novalidate":      true,
	"open":            true,
	"playsinline":     true,
	"readonly":        true,
	"required":        true,
	"reversed":        true,
	"selected":        true,
}

// IsBooleanAttr reports whether key is a boolean HTML attribute.
func IsBooleanAttr(key string) bool {
	return booleanAttrs[strings.ToLower(key)]
}

// Attr creates an arbitrary attribute. Prefer the named helpers where
// one exists.
func Attr(key string, value any) Prop {
	return Prop{Key: key, Value: value}
}

// Identity and styling

// ID sets the id attribute.
func ID(id string) Prop { return Attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Prop { return Attr("class", strings.Join(classes, " ")) }

// ClassIf sets the class attribute only when the condition holds.
func ClassIf(cond bool, class string) Prop {
	if cond {
		return Attr("class", class)
	}
	return Prop{}
}

// Classes merges class values from strings, string slices, and
// map[string]bool toggles.
func Classes(values ...any) Prop {
	var out []string
	for _, v := range values {
		switch c := v.(type) {
		case string:
			if c != "" {
				out = append(out, c)
			}
		case []string:
			for _, s := range c {
				if s != "" {
					out = append(out, s)
				}
			}
		case map[string]bool:
			for class, on := range c {
				if on && class != "" {
					out = append(out, class)
				}
			}
		}
	}
	return Attr("class", strings.Join(out, " "))
}

// Style sets the style attribute.
func Style(css string) Prop { return Attr("style", css) }

// Data creates a data-* attribute: Data("id", "42") sets data-id="42".
func Data(key, value string) Prop { return Attr("data-"+key, value) }

// AttrIf passes the prop through only when the condition holds.
func AttrIf(cond bool, p Prop) Prop {
	if cond {
		return p
	}
	return Prop{}
}

// Accessibility

func Role(role string) Prop       { return Attr("role", role) }
func AriaLabel(label string) Prop { return Attr("aria-label", label) }
func AriaHidden(hidden bool) Prop { return Attr("aria-hidden", hidden) }
func AriaExpanded(v bool) Prop    { return Attr("aria-expanded", v) }
func AriaLive(mode string) Prop   { return Attr("aria-live", mode) }
func TabIndex(i int) Prop         { return Attr("tabindex", i) }

// Links and media

func Href(url string) Prop     { return Attr("href", url) }
func Target(t string) Prop     { return Attr("target", t) }
func Rel(rel string) Prop      { return Attr("rel", rel) }
func Src(url string) Prop      { return Attr("src", url) }
func Alt(text string) Prop     { return Attr("alt", text) }
func Width(w int) Prop         { return Attr("width", w) }
func Height(h int) Prop        { return Attr("height", h) }
func Loading(mode string) Prop { return Attr("loading", mode) }

// Form fields

func Type(t string) Prop           { return Attr("type", t) }
func Name(name string) Prop        { return Attr("name", name) }
func Value(value string) Prop      { return Attr("value", value) }
func Placeholder(text string) Prop { return Attr("placeholder", text) }
func Autocomplete(v string) Prop   { return Attr("autocomplete", v) }
func For(id string) Prop           { return Attr("for", id) }
func Action(url string) Prop       { return Attr("action", url) }
func Method(m string) Prop         { return Attr("method", m) }
func Min(v string) Prop            { return Attr("min", v) }
func Max(v string) Prop            { return Attr("max", v) }
func Step(v string) Prop           { return Attr("step", v) }
func MaxLength(n int) Prop         { return Attr("maxlength", n) }
func Pattern(p string) Prop        { return Attr("pattern", p) }
func Rows(n int) Prop              { return Attr("rows", n) }
func Cols(n int) Prop              { return Attr("cols", n) }

// Boolean state

func Disabled() Prop  { return Attr("disabled", true) }
func Readonly() Prop  { return Attr("readonly", true) }
func Required() Prop  { return Attr("required", true) }
func Checked() Prop   { return Attr("checked", true) }
func Selected() Prop  { return Attr("selected", true) }
func Multiple() Prop  { return Attr("multiple", true) }
func Autofocus() Prop { return Attr("autofocus", true) }
func Hidden() Prop    { return Attr("hidden", true) }
func Open() Prop      { return Attr("open", true) }

// Tables

func Colspan(n int) Prop { return Attr("colspan", n) }
func Rowspan(n int) Prop { return Attr("rowspan", n) }

// Document metadata

func Charset(cs string) Prop      { return Attr("charset", cs) }
func Content(content string) Prop { return Attr("content", content) }
func Lang(lang string) Prop       { return Attr("lang", lang) }
