// Package services – WidgetService
//
// This file implements the dashboard's widget editor: creating and updating
// WidgetConfig rows and rendering the live preview. Stored values are
// validated but never defaulted; defaults belong to the widget resolver so
// the preview and the public embed cannot drift apart.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/repo"
	"github.com/tbourn/go-bot-builder/internal/widget"
)

// WidgetInput is the editable part of a widget. Nil optional fields are
// stored as NULL and resolved to defaults at read time.
type WidgetInput struct {
	BotID          string
	Title          string
	WelcomeMessage string
	Theme          *string
	Color          *string
	AvatarURL      *string
	LogoURL        *string
	ButtonIconURL  *string
	Position       *string
	Width          *int
	Height         *int
	BubbleSize     *int
	PopupText      *string
	PopupDelay     *int
	// MessageLimit defaults to -1 (unlimited) when nil.
	MessageLimit *int
	// IsActive defaults to true when nil.
	IsActive *bool
}

// WidgetService implements widget management.
type WidgetService struct {
	DB       *gorm.DB
	Resolver *widget.Resolver
}

var hexColorRE = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// validate rejects values the resolver would otherwise silently replace.
func (in WidgetInput) validate() error {
	bad := func(format string, a ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, a...))
	}
	if strings.TrimSpace(in.Title) == "" {
		return bad("title is required")
	}
	if in.Theme != nil && *in.Theme != widget.ThemeLight && *in.Theme != widget.ThemeDark {
		return bad("theme must be %q or %q", widget.ThemeLight, widget.ThemeDark)
	}
	if in.Position != nil && *in.Position != widget.PositionBottomLeft && *in.Position != widget.PositionBottomRight {
		return bad("position must be %q or %q", widget.PositionBottomLeft, widget.PositionBottomRight)
	}
	if in.Color != nil && !hexColorRE.MatchString(*in.Color) {
		return bad("color must be a hex color")
	}
	for name, v := range map[string]*int{"width": in.Width, "height": in.Height, "bubble_size": in.BubbleSize} {
		if v != nil && *v <= 0 {
			return bad("%s must be positive", name)
		}
	}
	for name, v := range map[string]*string{"avatar_url": in.AvatarURL, "logo_url": in.LogoURL, "button_icon_url": in.ButtonIconURL} {
		if v != nil && strings.TrimSpace(*v) != "" && !isImageURL(strings.TrimSpace(*v)) {
			return bad("%s must be an absolute http(s) URL", name)
		}
	}
	if in.PopupDelay != nil && *in.PopupDelay < 0 {
		return bad("popup_delay must not be negative")
	}
	if in.MessageLimit != nil && *in.MessageLimit < -1 {
		return bad("message_limit must be -1 or greater")
	}
	return nil
}

// isImageURL accepts absolute http(s) URLs without characters that could
// end a quoted CSS or HTML attribute value.
func isImageURL(s string) bool {
	if strings.ContainsAny(s, "\"'\\<>() \t\r\n;") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (in WidgetInput) apply(w *domain.WidgetConfig) {
	w.BotID = in.BotID
	w.Title = strings.TrimSpace(in.Title)
	w.WelcomeMessage = strings.TrimSpace(in.WelcomeMessage)
	w.Theme = in.Theme
	w.Color = in.Color
	w.AvatarURL = trimmedOrNil(in.AvatarURL)
	w.LogoURL = trimmedOrNil(in.LogoURL)
	w.ButtonIconURL = trimmedOrNil(in.ButtonIconURL)
	w.Position = in.Position
	w.Width = in.Width
	w.Height = in.Height
	w.BubbleSize = in.BubbleSize
	w.PopupText = trimmedOrNil(in.PopupText)
	w.PopupDelay = in.PopupDelay
	w.MessageLimit = -1
	if in.MessageLimit != nil {
		w.MessageLimit = *in.MessageLimit
	}
	w.IsActive = true
	if in.IsActive != nil {
		w.IsActive = *in.IsActive
	}
}

// Create stores a widget for one of userID's bots.
func (s *WidgetService) Create(ctx context.Context, userID string, in WidgetInput) (*domain.WidgetConfig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.ownedBot(ctx, userID, in.BotID); err != nil {
		return nil, err
	}
	w := &domain.WidgetConfig{UserID: userID}
	in.apply(w)
	if err := repo.CreateWidget(ctx, s.DB, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Update replaces every editable field of widgetID. The widget may be moved
// to another of the caller's bots.
func (s *WidgetService) Update(ctx context.Context, userID, widgetID string, in WidgetInput) (*domain.WidgetConfig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	w, err := repo.GetOwnedWidget(ctx, s.DB, widgetID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWidgetNotFound
		}
		return nil, err
	}
	if in.BotID == "" {
		in.BotID = w.BotID
	}
	if _, err := s.ownedBot(ctx, userID, in.BotID); err != nil {
		return nil, err
	}
	in.apply(w)
	if err := repo.SaveWidget(ctx, s.DB, w); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWidgetNotFound
		}
		return nil, err
	}
	return w, nil
}

// Preview resolves one of userID's widgets with the dashboard-preview defaults.
func (s *WidgetService) Preview(ctx context.Context, userID, widgetID string) (*widget.Resolved, error) {
	if _, err := repo.GetOwnedWidget(ctx, s.DB, widgetID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWidgetNotFound
		}
		return nil, err
	}
	res, err := s.Resolver.Resolve(ctx, widgetID, widget.ContextPreview)
	if errors.Is(err, widget.ErrNotFound) {
		return nil, ErrWidgetNotFound
	}
	return res, err
}

func (s *WidgetService) ownedBot(ctx context.Context, userID, botID string) (*domain.Bot, error) {
	b, err := repo.GetOwnedBot(ctx, s.DB, botID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return b, nil
}
