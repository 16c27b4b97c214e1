package embed

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-bot-builder/internal/widget"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	cfg   *widget.Config
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (*widget.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := *f.cfg
	return &c, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type timer struct {
	at    time.Duration
	fn    func()
	fired bool
}

// fakeClock only advances when told to.
type fakeClock struct {
	now    time.Duration
	timers []*timer
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) {
	c.timers = append(c.timers, &timer{at: c.now + d, fn: fn})
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now += d
	for _, t := range c.timers {
		if !t.fired && t.at <= c.now {
			t.fired = true
			t.fn()
		}
	}
}

func newTestLoader(h Host, f ConfigFetcher) (*Loader, *fakeClock, *bytes.Buffer) {
	var buf bytes.Buffer
	clk := &fakeClock{}
	l := NewLoader(h, f, zerolog.New(&buf))
	l.Clock = clk
	return l, clk, &buf
}

func stubConfig() *widget.Config {
	return &widget.Config{
		Color:      "#fff",
		Position:   widget.PositionBottomLeft,
		PopupText:  "Hi",
		PopupDelay: 0,
		IsActive:   true,
	}
}

func TestInit_MountsAndTogglesOpenClosed(t *testing.T) {
	h := NewMemoryHost(false)
	f := &fakeFetcher{cfg: stubConfig()}
	l, _, _ := newTestLoader(h, f)

	l.Init(context.Background(), Options{WidgetID: "abc"})

	if l.State() != StateReadyClosed {
		t.Fatalf("state=%v", l.State())
	}
	container := h.ByID(SentinelID)
	if container == nil {
		t.Fatal("container not mounted")
	}
	if container.Style["left"] != "20px" || container.Style["right"] != "" {
		t.Fatalf("container should be anchored left: %+v", container.Style)
	}
	popup := h.ByID(PopupID)
	if popup == nil || popup.Text != "Hi" {
		t.Fatalf("popup=%+v", popup)
	}
	if h.ByID(BubbleID).Style["background-color"] != "#fff" {
		t.Fatalf("bubble color=%q", h.ByID(BubbleID).Style["background-color"])
	}

	initial := l.View()
	if !initial.BubbleVisible || !initial.PopupVisible || initial.FrameVisible || initial.CloseVisible {
		t.Fatalf("initial view=%+v", initial)
	}

	h.ByID(BubbleID).Click()
	v := l.View()
	if v.State != StateOpen || v.BubbleVisible || v.PopupVisible || !v.FrameVisible || !v.CloseVisible {
		t.Fatalf("open view=%+v", v)
	}
	if v.IframeSrc != DefaultWebURL+"/widget/abc" {
		t.Fatalf("iframe src=%q", v.IframeSrc)
	}

	h.ByID(FrameCloseID).Click()
	if got := l.View(); got != initial {
		t.Fatalf("after close view=%+v, want %+v", got, initial)
	}
}

func TestInit_PopupClickOpens_PopupCloseOnlyHidesPopup(t *testing.T) {
	h := NewMemoryHost(false)
	l, _, _ := newTestLoader(h, &fakeFetcher{cfg: stubConfig()})
	l.Init(context.Background(), Options{WidgetID: "abc", WebURL: "https://chat.example.com/"})

	h.ByID(PopupCloseID).Click()
	v := l.View()
	if v.State != StateReadyClosed || v.PopupVisible || !v.BubbleVisible || v.FrameVisible {
		t.Fatalf("after dismiss view=%+v", v)
	}

	h.ByID(PopupID).Click()
	v = l.View()
	if v.State != StateOpen || !v.FrameVisible {
		t.Fatalf("popup click should open: %+v", v)
	}
	if v.IframeSrc != "https://chat.example.com/widget/abc" {
		t.Fatalf("iframe src=%q", v.IframeSrc)
	}
}

func TestInit_FetchError_RendersNothing(t *testing.T) {
	h := NewMemoryHost(false)
	f := &fakeFetcher{err: errors.New("widget config: 404: widget not found")}
	l, _, console := newTestLoader(h, f)

	l.Init(context.Background(), Options{WidgetID: "missing"})

	if l.State() != StateFailed {
		t.Fatalf("state=%v", l.State())
	}
	if n := len(h.Body().Children); n != 0 {
		t.Fatalf("body has %d children", n)
	}
	if !strings.Contains(console.String(), `"level":"error"`) {
		t.Fatalf("no console error: %s", console.String())
	}
}

func TestInit_InactiveWidget_Fails(t *testing.T) {
	h := NewMemoryHost(false)
	cfg := stubConfig()
	cfg.IsActive = false
	l, _, console := newTestLoader(h, &fakeFetcher{cfg: cfg})

	l.Init(context.Background(), Options{WidgetID: "abc"})

	if l.State() != StateFailed || len(h.Body().Children) != 0 {
		t.Fatalf("state=%v children=%d", l.State(), len(h.Body().Children))
	}
	if !strings.Contains(console.String(), "inactive") {
		t.Fatalf("console=%s", console.String())
	}
}

func TestInit_Twice_SingleFetchAndWarning(t *testing.T) {
	h := NewMemoryHost(false)
	f := &fakeFetcher{cfg: stubConfig()}
	l, _, console := newTestLoader(h, f)

	l.Init(context.Background(), Options{WidgetID: "abc"})
	l.Init(context.Background(), Options{WidgetID: "abc"})

	if f.Calls() != 1 {
		t.Fatalf("fetch calls=%d", f.Calls())
	}
	if n := len(h.Body().Children); n != 1 {
		t.Fatalf("mounted %d containers", n)
	}
	if !strings.Contains(console.String(), `"level":"warn"`) {
		t.Fatalf("no warning: %s", console.String())
	}
}

func TestInit_SecondLoaderOnSamePage_Ignored(t *testing.T) {
	h := NewMemoryHost(false)
	f := &fakeFetcher{cfg: stubConfig()}
	first, _, _ := newTestLoader(h, f)
	second, _, console := newTestLoader(h, f)

	first.Init(context.Background(), Options{WidgetID: "abc"})
	second.Init(context.Background(), Options{WidgetID: "abc"})

	if f.Calls() != 1 || len(h.Body().Children) != 1 {
		t.Fatalf("calls=%d children=%d", f.Calls(), len(h.Body().Children))
	}
	if second.State() != StateUninitialized {
		t.Fatalf("second state=%v", second.State())
	}
	if !strings.Contains(console.String(), "already initialized") {
		t.Fatalf("console=%s", console.String())
	}
}

func TestInit_EmptyWidgetID(t *testing.T) {
	h := NewMemoryHost(false)
	f := &fakeFetcher{cfg: stubConfig()}
	l, _, console := newTestLoader(h, f)

	l.Init(context.Background(), Options{WidgetID: "  "})

	if f.Calls() != 0 || l.State() != StateUninitialized {
		t.Fatalf("calls=%d state=%v", f.Calls(), l.State())
	}
	if !strings.Contains(console.String(), "widgetId is required") {
		t.Fatalf("console=%s", console.String())
	}
}

func TestInit_WaitsForDocumentReady(t *testing.T) {
	h := NewMemoryHost(true)
	f := &fakeFetcher{cfg: stubConfig()}
	l, _, _ := newTestLoader(h, f)

	l.Init(context.Background(), Options{WidgetID: "abc"})
	if f.Calls() != 0 {
		t.Fatal("fetched before the document finished loading")
	}
	if l.State() != StateLoading {
		t.Fatalf("state while deferred = %v; want LOADING", l.State())
	}
	// A second init while waiting is still a duplicate.
	l.Init(context.Background(), Options{WidgetID: "abc"})

	h.FinishLoading()
	if f.Calls() != 1 || l.State() != StateReadyClosed {
		t.Fatalf("calls=%d state=%v", f.Calls(), l.State())
	}
}

func TestInit_PopupDelay_FiresOnce(t *testing.T) {
	h := NewMemoryHost(false)
	cfg := stubConfig()
	cfg.PopupDelay = 500
	l, clk, _ := newTestLoader(h, &fakeFetcher{cfg: cfg})

	l.Init(context.Background(), Options{WidgetID: "abc"})

	if h.ByID(PopupID) == nil {
		t.Fatal("popup element should exist")
	}
	if l.View().PopupVisible {
		t.Fatal("popup visible before delay")
	}
	clk.Advance(499 * time.Millisecond)
	if l.View().PopupVisible {
		t.Fatal("popup visible at 499ms")
	}
	clk.Advance(1 * time.Millisecond)
	if !l.View().PopupVisible {
		t.Fatal("popup not visible at 500ms")
	}
	if len(clk.timers) != 1 {
		t.Fatalf("scheduled %d timers", len(clk.timers))
	}

	h.ByID(PopupCloseID).Click()
	clk.Advance(time.Hour)
	if l.View().PopupVisible {
		t.Fatal("popup reappeared")
	}
}

func TestInit_PopupDelay_DetachedContainerUntouched(t *testing.T) {
	h := NewMemoryHost(false)
	cfg := stubConfig()
	cfg.PopupDelay = 500
	l, clk, _ := newTestLoader(h, &fakeFetcher{cfg: cfg})
	l.Init(context.Background(), Options{WidgetID: "abc"})

	popup := h.ByID(PopupID)
	h.ByID(SentinelID).Remove()
	clk.Advance(time.Second)

	if popup.Visible() {
		t.Fatal("timer mutated a detached widget")
	}
}

func TestInit_NoPopupText_NoPopupShown(t *testing.T) {
	h := NewMemoryHost(false)
	cfg := stubConfig()
	cfg.PopupText = ""
	l, clk, _ := newTestLoader(h, &fakeFetcher{cfg: cfg})
	l.Init(context.Background(), Options{WidgetID: "abc"})

	clk.Advance(time.Hour)
	if l.View().PopupVisible || len(clk.timers) != 0 {
		t.Fatalf("view=%+v timers=%d", l.View(), len(clk.timers))
	}
}

func TestInit_FillsEmbedDefaults(t *testing.T) {
	h := NewMemoryHost(false)
	l, _, _ := newTestLoader(h, &fakeFetcher{cfg: &widget.Config{IsActive: true, Position: "middle"}})
	l.Init(context.Background(), Options{WidgetID: "abc"})

	cfg := l.Config()
	d := widget.DefaultsFor(widget.ContextEmbed, "")
	if cfg.Color != d.Color || cfg.Position != widget.PositionBottomRight || cfg.Height != d.Height || cfg.BubbleSize != d.BubbleSize {
		t.Fatalf("cfg=%+v", cfg)
	}
	if h.ByID(SentinelID).Style["right"] != "20px" {
		t.Fatalf("style=%+v", h.ByID(SentinelID).Style)
	}
}

func TestInit_UnsafeStyleValuesReplaced(t *testing.T) {
	h := NewMemoryHost(false)
	l, _, _ := newTestLoader(h, &fakeFetcher{cfg: &widget.Config{
		IsActive:      true,
		Color:         "red;position:static",
		ButtonIconURL: "javascript:alert(1)",
	}})
	l.Init(context.Background(), Options{WidgetID: "abc"})

	d := widget.DefaultsFor(widget.ContextEmbed, "")
	bubble := h.ByID(BubbleID)
	if got := bubble.Style["background-color"]; got != d.Color {
		t.Fatalf("background-color=%q", got)
	}
	if got := bubble.Style["background-image"]; got != `url("`+d.ButtonIconURL+`")` {
		t.Fatalf("background-image=%q", got)
	}
}

func TestCSSURL_EscapesBreakoutCharacters(t *testing.T) {
	got := cssURL("https://x.test/a.png\"); background:red; x:url('")
	want := `url("https://x.test/a.png\22 ); background:red; x:url('")`
	if got != want {
		t.Fatalf("cssURL=%q want %q", got, want)
	}
	if strings.Count(got, `"`) != 2 {
		t.Fatalf("unescaped quote in %q", got)
	}
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, string) (*widget.Config, error) { panic("boom") }

func TestInit_PanicBecomesFailed(t *testing.T) {
	h := NewMemoryHost(false)
	l, _, console := newTestLoader(h, panicFetcher{})

	l.Init(context.Background(), Options{WidgetID: "abc"})

	if l.State() != StateFailed {
		t.Fatalf("state=%v", l.State())
	}
	if !strings.Contains(console.String(), "boom") {
		t.Fatalf("console=%s", console.String())
	}
}

func TestOpenClose_IgnoredOutsideValidStates(t *testing.T) {
	l, _, _ := newTestLoader(NewMemoryHost(false), &fakeFetcher{cfg: stubConfig()})
	l.Open()
	l.Close()
	if l.State() != StateUninitialized {
		t.Fatalf("state=%v", l.State())
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateUninitialized: "UNINITIALIZED",
		StateLoading:       "LOADING",
		StateReadyClosed:   "READY_CLOSED",
		StateOpen:          "OPEN",
		StateFailed:        "FAILED",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("%d => %q", s, s.String())
		}
	}
}
