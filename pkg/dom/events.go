package dom

// On attaches a handler for an arbitrary event name. The name is given
// without the "on" prefix: On("pointerdown", fn).
//
// Handler signatures are interpreted by the live session when the event
// arrives: func() receives nothing, func(string) receives the event
// value (input text, select value), and func(weft.Event) receives the
// full event payload.
func On(event string, fn any) EventHandler {
	return EventHandler{Event: "on" + event, Fn: fn}
}

// Mouse

func OnClick(fn any) EventHandler      { return On("click", fn) }
func OnDblClick(fn any) EventHandler   { return On("dblclick", fn) }
func OnMouseDown(fn any) EventHandler  { return On("mousedown", fn) }
func OnMouseUp(fn any) EventHandler    { return On("mouseup", fn) }
func OnMouseEnter(fn any) EventHandler { return On("mouseenter", fn) }
func OnMouseLeave(fn any) EventHandler { return On("mouseleave", fn) }

// Keyboard

func OnKeyDown(fn any) EventHandler { return On("keydown", fn) }
func OnKeyUp(fn any) EventHandler   { return On("keyup", fn) }

// Forms

func OnInput(fn any) EventHandler  { return On("input", fn) }
func OnChange(fn any) EventHandler { return On("change", fn) }
func OnSubmit(fn any) EventHandler { return On("submit", fn) }
func OnReset(fn any) EventHandler  { return On("reset", fn) }
func OnFocus(fn any) EventHandler  { return On("focus", fn) }
func OnBlur(fn any) EventHandler   { return On("blur", fn) }

// Misc

func OnScroll(fn any) EventHandler { return On("scroll", fn) }
func OnToggle(fn any) EventHandler { return On("toggle", fn) }
