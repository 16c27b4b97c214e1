package embed

import "sync"

// Element is a minimal DOM node: enough structure for the loader to build,
// show, hide and click its UI.
type Element struct {
	Tag      string
	ID       string
	Text     string
	Attrs    map[string]string
	Style    map[string]string
	Children []*Element

	parent  *Element
	onClick func()
}

// NewElement returns a detached element.
func NewElement(tag, id string) *Element {
	return &Element{Tag: tag, ID: id, Attrs: map[string]string{}, Style: map[string]string{}}
}

// Append attaches child as the last child of e, detaching it from any
// previous parent.
func (e *Element) Append(child *Element) {
	child.Remove()
	child.parent = e
	e.Children = append(e.Children, child)
}

// Remove detaches e from its parent. It is a no-op for detached elements.
func (e *Element) Remove() {
	p := e.parent
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == e {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	e.parent = nil
}

// Parent returns the parent element or nil.
func (e *Element) Parent() *Element { return e.parent }

// OnClick sets the click handler.
func (e *Element) OnClick(fn func()) { e.onClick = fn }

// Click invokes the click handler, if any.
func (e *Element) Click() {
	if e.onClick != nil {
		e.onClick()
	}
}

// Show and Hide toggle the display style.
func (e *Element) Show() { e.Style["display"] = "block" }
func (e *Element) Hide() { e.Style["display"] = "none" }

// Visible reports whether e itself is not display:none. Ancestors are not
// consulted; see Displayed.
func (e *Element) Visible() bool { return e.Style["display"] != "none" }

// Displayed reports whether e and every ancestor are visible.
func (e *Element) Displayed() bool {
	for n := e; n != nil; n = n.parent {
		if !n.Visible() {
			return false
		}
	}
	return true
}

// Find returns the first descendant (or e itself) with the given id.
func (e *Element) Find(id string) *Element {
	if e.ID == id {
		return e
	}
	for _, c := range e.Children {
		if f := c.Find(id); f != nil {
			return f
		}
	}
	return nil
}

func (e *Element) contains(target *Element) bool {
	for n := target; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// Host abstracts the page the loader is embedded in.
type Host interface {
	// Loading reports whether the document is still parsing.
	Loading() bool
	// OnReady registers fn to run once the document finishes loading.
	OnReady(fn func())
	// Body is the element the widget container is mounted under.
	Body() *Element
	// Contains reports whether el is attached to the document.
	Contains(el *Element) bool
	// ByID looks up an attached element.
	ByID(id string) *Element
}

// MemoryHost is an in-process document used by the probe command and tests.
type MemoryHost struct {
	mu      sync.Mutex
	loading bool
	ready   []func()
	body    *Element
}

// NewMemoryHost returns a document whose ready state is loading or complete.
func NewMemoryHost(loading bool) *MemoryHost {
	return &MemoryHost{loading: loading, body: NewElement("body", "")}
}

func (h *MemoryHost) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

func (h *MemoryHost) OnReady(fn func()) {
	h.mu.Lock()
	if !h.loading {
		h.mu.Unlock()
		fn()
		return
	}
	h.ready = append(h.ready, fn)
	h.mu.Unlock()
}

// FinishLoading marks the document complete and runs ready callbacks in
// registration order.
func (h *MemoryHost) FinishLoading() {
	h.mu.Lock()
	h.loading = false
	fns := h.ready
	h.ready = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *MemoryHost) Body() *Element { return h.body }

func (h *MemoryHost) Contains(el *Element) bool {
	return el != nil && h.body.contains(el)
}

func (h *MemoryHost) ByID(id string) *Element {
	if id == "" {
		return nil
	}
	return h.body.Find(id)
}
