// Package widget resolves a stored widget configuration into the normalized,
// render-ready form consumed by both the public embed and the dashboard
// preview. Missing or invalid cosmetic values are replaced from a single
// default table keyed by the calling context.
package widget

import "strings"

// Context identifies which consumer is resolving a widget. Each context has
// its own brand defaults.
type Context int

const (
	// ContextEmbed is the public standalone embed script.
	ContextEmbed Context = iota
	// ContextPreview is the in-app dashboard live preview.
	ContextPreview
)

// String returns the metric/log label for c.
func (c Context) String() string {
	if c == ContextPreview {
		return "preview"
	}
	return "embed"
}

// Positions and themes accepted by the renderer.
const (
	PositionBottomRight = "bottom-right"
	PositionBottomLeft  = "bottom-left"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// DefaultCDNBase hosts the placeholder avatar, logo and button icon.
const DefaultCDNBase = "https://cdn.botbuilder.chat/widget"

// Defaults is the fallback table applied to null or invalid fields.
type Defaults struct {
	Color         string
	Position      string
	Width         int
	Height        int
	AvatarURL     string
	LogoURL       string
	ButtonIconURL string
	BubbleSize    int
	PopupText     string
	PopupDelay    int
	Theme         string
}

// DefaultsFor returns the default table for ctx. Placeholder image URLs are
// built from cdnBase, or DefaultCDNBase when empty.
func DefaultsFor(ctx Context, cdnBase string) Defaults {
	base := strings.TrimRight(strings.TrimSpace(cdnBase), "/")
	if base == "" {
		base = DefaultCDNBase
	}
	d := Defaults{
		Color:         "#4A90E2",
		Position:      PositionBottomRight,
		Width:         400,
		Height:        600,
		AvatarURL:     base + "/avatar.png",
		LogoURL:       base + "/logo.png",
		ButtonIconURL: base + "/button-icon.svg",
		BubbleSize:    56,
		PopupText:     "",
		PopupDelay:    0,
		Theme:         ThemeLight,
	}
	if ctx == ContextPreview {
		d.Color = "#3a9e91"
		d.Height = 500
	}
	return d
}

func orString(v *string, def string) string {
	if v == nil {
		return def
	}
	if s := strings.TrimSpace(*v); s != "" {
		return s
	}
	return def
}

func orPositive(v *int, def int) int {
	if v == nil || *v <= 0 {
		return def
	}
	return *v
}

func normalizePosition(v *string, def string) string {
	switch p := strings.ToLower(orString(v, def)); p {
	case PositionBottomLeft, PositionBottomRight:
		return p
	}
	return PositionBottomRight
}

func normalizeTheme(v *string, def string) string {
	switch t := strings.ToLower(orString(v, def)); t {
	case ThemeLight, ThemeDark:
		return t
	}
	return ThemeLight
}

func normalizeDelay(v *int, def int) int {
	if v == nil {
		return def
	}
	if *v < 0 {
		return 0
	}
	return *v
}

func normalizeLimit(n int) int {
	if n < -1 {
		return -1
	}
	return n
}
