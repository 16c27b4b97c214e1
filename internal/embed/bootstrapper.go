// Package embed implements the lifecycle of the embeddable chat widget: it
// validates an init call, fetches the resolved widget configuration once,
// mounts a bubble/popup/iframe UI into a host document and then toggles
// between the closed and open states.
//
// The same state machine ships to browsers as assets/widget.js (see Script).
// The Go implementation drives the `botbuilder widget probe` command and the
// package tests.
package embed

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-bot-builder/internal/widget"
)

// State is the lifecycle state of a Loader.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReadyClosed
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateReadyClosed:
		return "READY_CLOSED"
	case StateOpen:
		return "OPEN"
	case StateFailed:
		return "FAILED"
	}
	return "UNINITIALIZED"
}

// Element ids of the mounted UI. SentinelID marks an initialized page.
const (
	SentinelID     = "botbuilder-widget-container"
	TriggerID      = "botbuilder-widget-trigger"
	BubbleID       = "botbuilder-widget-bubble"
	PopupID        = "botbuilder-widget-popup"
	PopupCloseID   = "botbuilder-widget-popup-close"
	FrameID        = "botbuilder-widget-frame"
	IframeID       = "botbuilder-widget-iframe"
	FrameCloseID   = "botbuilder-widget-close"
	DefaultWebURL  = "https://app.botbuilder.chat"
	DefaultTimeout = 10 * time.Second
)

// Options are the arguments of init({widgetId, webUrl}).
type Options struct {
	WidgetID string
	WebURL   string
}

// Loader runs one widget lifecycle against a Host.
type Loader struct {
	Host         Host
	Fetcher      ConfigFetcher
	Clock        Clock
	Console      zerolog.Logger
	FetchTimeout time.Duration

	mu             sync.Mutex
	state          State
	inProgress     bool
	popupDismissed bool
	cfg            *widget.Config
	ui             *ui
}

type ui struct {
	container, trigger, bubble, popup, popupClose *Element
	frame, iframe, frameClose                     *Element
}

// NewLoader returns a Loader with a real clock and the default timeout.
func NewLoader(h Host, f ConfigFetcher, console zerolog.Logger) *Loader {
	return &Loader{Host: h, Fetcher: f, Clock: RealClock{}, Console: console, FetchTimeout: DefaultTimeout}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Config returns the fetched configuration, or nil before READY_CLOSED.
func (l *Loader) Config() *widget.Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Init starts the lifecycle. It never panics and reports every problem on
// the console. Repeated or concurrent calls are ignored with a warning.
func (l *Loader) Init(ctx context.Context, opts Options) {
	defer l.guard()

	id := strings.TrimSpace(opts.WidgetID)
	if id == "" {
		l.Console.Error().Msg("BotBuilderWidget: widgetId is required")
		return
	}
	webURL := strings.TrimRight(strings.TrimSpace(opts.WebURL), "/")
	if webURL == "" {
		webURL = DefaultWebURL
	}

	l.mu.Lock()
	if l.inProgress || l.state != StateUninitialized || l.Host.ByID(SentinelID) != nil {
		l.mu.Unlock()
		l.Console.Warn().Str("widget_id", id).Msg("BotBuilderWidget: already initialized")
		return
	}
	l.inProgress = true
	// LOADING covers the wait for the document as well as the fetch.
	l.state = StateLoading
	l.mu.Unlock()

	if l.Host.Loading() {
		l.Host.OnReady(func() {
			defer l.guard()
			l.load(ctx, id, webURL)
		})
		return
	}
	l.load(ctx, id, webURL)
}

// guard converts a panic into a console error and a FAILED state.
func (l *Loader) guard() {
	if r := recover(); r != nil {
		l.Console.Error().Str("panic", fmt.Sprint(r)).Msg("BotBuilderWidget: internal error")
		l.mu.Lock()
		l.fail()
		l.mu.Unlock()
	}
}

func (l *Loader) load(ctx context.Context, id, webURL string) {
	timeout := l.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	cfg, err := l.Fetcher.Fetch(fctx, id)
	cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case err != nil:
		l.Console.Error().Err(err).Str("widget_id", id).Msg("BotBuilderWidget: failed to load widget config")
		l.fail()
		return
	case !cfg.IsActive:
		l.Console.Error().Str("widget_id", id).Msg("BotBuilderWidget: widget is inactive")
		l.fail()
		return
	case l.Host.ByID(SentinelID) != nil:
		l.Console.Warn().Str("widget_id", id).Msg("BotBuilderWidget: already initialized")
		l.fail()
		return
	}

	cfg = withEmbedDefaults(cfg)
	l.cfg = cfg
	l.ui = l.build(id, cfg, webURL)
	l.Host.Body().Append(l.ui.container)
	l.state = StateReadyClosed
	l.inProgress = false
	l.schedulePopup(cfg)
}

// fail must be called with l.mu held. Anything already mounted is removed
// so the host page is left as it was.
func (l *Loader) fail() {
	if l.ui != nil {
		l.ui.container.Remove()
		l.ui = nil
	}
	l.state = StateFailed
	l.inProgress = false
}

// withEmbedDefaults fills fields a non-normalizing server may have left
// empty. The server-side resolver already applies the same table.
func withEmbedDefaults(in *widget.Config) *widget.Config {
	cfg := *in
	d := widget.DefaultsFor(widget.ContextEmbed, "")
	if !hexColorRE.MatchString(cfg.Color) {
		cfg.Color = d.Color
	}
	if cfg.Position != widget.PositionBottomLeft {
		cfg.Position = d.Position
	}
	if cfg.Width <= 0 {
		cfg.Width = d.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = d.Height
	}
	if cfg.BubbleSize <= 0 {
		cfg.BubbleSize = d.BubbleSize
	}
	if !isHTTPURL(cfg.ButtonIconURL) {
		cfg.ButtonIconURL = d.ButtonIconURL
	}
	if cfg.PopupDelay < 0 {
		cfg.PopupDelay = 0
	}
	return &cfg
}

var hexColorRE = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// cssURL quotes u as a CSS url() value. Quotes, backslashes and line breaks
// become CSS escapes so the value cannot terminate the declaration.
func cssURL(u string) string {
	var b strings.Builder
	b.WriteString(`url("`)
	for _, r := range u {
		switch r {
		case '"', '\\', '\n', '\r', '\f':
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(`")`)
	return b.String()
}

func (l *Loader) build(widgetID string, cfg *widget.Config, webURL string) *ui {
	u := &ui{
		container:  NewElement("div", SentinelID),
		trigger:    NewElement("div", TriggerID),
		bubble:     NewElement("button", BubbleID),
		popup:      NewElement("div", PopupID),
		popupClose: NewElement("button", PopupCloseID),
		frame:      NewElement("div", FrameID),
		iframe:     NewElement("iframe", IframeID),
		frameClose: NewElement("button", FrameCloseID),
	}

	side := "right"
	if cfg.Position == widget.PositionBottomLeft {
		side = "left"
	}
	u.container.Style["position"] = "fixed"
	u.container.Style["bottom"] = "20px"
	u.container.Style[side] = "20px"
	u.container.Style["z-index"] = "2147483647"

	px := func(n int) string { return strconv.Itoa(n) + "px" }
	u.bubble.Style["width"] = px(cfg.BubbleSize)
	u.bubble.Style["height"] = px(cfg.BubbleSize)
	u.bubble.Style["background-color"] = cfg.Color
	u.bubble.Style["background-image"] = cssURL(cfg.ButtonIconURL)
	u.bubble.Attrs["aria-label"] = cfg.Title

	u.popup.Text = cfg.PopupText
	u.popupClose.Text = "×"
	u.popup.Append(u.popupClose)
	u.popup.Hide()

	u.iframe.Attrs["src"] = webURL + "/widget/" + url.PathEscape(widgetID)
	u.iframe.Attrs["title"] = cfg.Title
	u.iframe.Style["width"] = px(cfg.Width)
	u.iframe.Style["height"] = px(cfg.Height)
	u.iframe.Style["border"] = "0"
	u.frameClose.Text = "×"
	u.frame.Append(u.iframe)
	u.frame.Append(u.frameClose)
	u.frame.Hide()
	u.frameClose.Hide()

	u.trigger.Append(u.popup)
	u.trigger.Append(u.bubble)
	u.container.Append(u.trigger)
	u.container.Append(u.frame)

	u.bubble.OnClick(l.Open)
	u.popup.OnClick(l.Open)
	u.popupClose.OnClick(l.DismissPopup)
	u.frameClose.OnClick(l.Close)
	return u
}

// schedulePopup must be called with l.mu held.
func (l *Loader) schedulePopup(cfg *widget.Config) {
	if cfg.PopupText == "" {
		return
	}
	if cfg.PopupDelay <= 0 {
		l.ui.popup.Show()
		return
	}
	container := l.ui.container
	l.Clock.AfterFunc(time.Duration(cfg.PopupDelay)*time.Millisecond, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// The host may have torn the widget down before the timer fired.
		if l.ui == nil || l.ui.container != container || !l.Host.Contains(container) {
			return
		}
		if !l.popupDismissed {
			l.ui.popup.Show()
		}
	})
}

// Open shows the iframe and hides the trigger. Only valid in READY_CLOSED.
func (l *Loader) Open() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReadyClosed || l.ui == nil {
		return
	}
	l.ui.trigger.Hide()
	l.ui.frame.Show()
	l.ui.frameClose.Show()
	l.state = StateOpen
}

// Close hides the iframe and shows the trigger again. Only valid in OPEN.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateOpen || l.ui == nil {
		return
	}
	l.ui.frame.Hide()
	l.ui.frameClose.Hide()
	l.ui.trigger.Show()
	l.state = StateReadyClosed
}

// DismissPopup hides the popup only; the rest of the UI is untouched.
func (l *Loader) DismissPopup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.popupDismissed = true
	if l.ui != nil {
		l.ui.popup.Hide()
	}
}

// View is a snapshot of what a visitor would see.
type View struct {
	State         State
	Mounted       bool
	BubbleVisible bool
	PopupVisible  bool
	FrameVisible  bool
	CloseVisible  bool
	IframeSrc     string
}

// View reports the current visibility of each part of the UI.
func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := View{State: l.state}
	if l.ui == nil {
		return v
	}
	v.Mounted = l.Host.Contains(l.ui.container)
	v.BubbleVisible = l.ui.bubble.Displayed()
	v.PopupVisible = l.ui.popup.Displayed()
	v.FrameVisible = l.ui.frame.Displayed()
	v.CloseVisible = l.ui.frameClose.Displayed()
	v.IframeSrc = l.ui.iframe.Attrs["src"]
	return v
}
