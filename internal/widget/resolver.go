package widget

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/observability"
	"github.com/tbourn/go-bot-builder/internal/prompt"
	"github.com/tbourn/go-bot-builder/internal/repo"
)

// ErrNotFound is returned when the id is empty, not a UUID, or matches no
// widget (or its bot is gone). Callers render a "not found" state.
var ErrNotFound = errors.New("widget not found")

// Resolved is the wire shape of GET /widget-config/{id}.
type Resolved struct {
	Widget Config `json:"widget"`
}

// Config is a widget with every cosmetic field filled in.
type Config struct {
	ID             string    `json:"id"`
	BotID          string    `json:"bot_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	WelcomeMessage string    `json:"welcome_message"`
	Theme          string    `json:"theme"`
	Color          string    `json:"color"`
	AvatarURL      string    `json:"avatar_url"`
	LogoURL        string    `json:"logo_url"`
	ButtonIconURL  string    `json:"button_icon_url"`
	Position       string    `json:"position"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	BubbleSize     int       `json:"bubble_size"`
	PopupText      string    `json:"popup_text"`
	PopupDelay     int       `json:"popup_delay"`
	MessageLimit   int       `json:"message_limit"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Bots           Bot       `json:"bots"`
}

// Bot is the owning bot as embedded in a resolved widget.
type Bot struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Industry      string                  `json:"industry"`
	Language      string                  `json:"language"`
	Model         string                  `json:"model"`
	LatestVersion *domain.VersionSnapshot `json:"latest_version"`
	Prompt        prompt.Document         `json:"prompt"`
}

// Resolver loads widgets and applies the default table.
type Resolver struct {
	DB      *gorm.DB
	CDNBase string
}

// Resolve returns the normalized configuration of widget id for the given
// calling context. It never writes.
func (r *Resolver) Resolve(ctx context.Context, id string, c Context) (*Resolved, error) {
	tr := otel.Tracer("widget/Resolver")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("widget.id", id),
			attribute.String("widget.context", c.String()),
		),
	)
	defer span.End()

	res, err := r.resolve(ctx, id, c)
	switch {
	case err == nil:
		observability.WidgetResolutions.WithLabelValues(c.String(), "ok").Inc()
	case errors.Is(err, ErrNotFound):
		observability.WidgetResolutions.WithLabelValues(c.String(), "not_found").Inc()
	default:
		observability.WidgetResolutions.WithLabelValues(c.String(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, id string, c Context) (*Resolved, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	w, err := repo.GetWidget(ctx, r.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	bot, err := repo.GetBot(ctx, r.DB, w.BotID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc prompt.Document
	latest, err := repo.LatestVersion(ctx, r.DB, bot.ID)
	switch {
	case err == nil:
		doc = SnapshotDocument(latest)
	case errors.Is(err, repo.ErrNotFound):
		latest = nil
	default:
		return nil, err
	}

	cfg := Normalize(w, DefaultsFor(c, r.CDNBase))
	cfg.Bots = Bot{
		ID:            bot.ID,
		Name:          bot.Name,
		Industry:      bot.Industry,
		Language:      bot.Language,
		Model:         bot.ModelOrDefault(),
		LatestVersion: latest,
		Prompt:        doc,
	}
	return &Resolved{Widget: cfg}, nil
}

// Normalize applies d to w. The bot section is left empty.
func Normalize(w *domain.WidgetConfig, d Defaults) Config {
	return Config{
		ID:             w.ID,
		BotID:          w.BotID,
		UserID:         w.UserID,
		Title:          w.Title,
		WelcomeMessage: w.WelcomeMessage,
		Theme:          normalizeTheme(w.Theme, d.Theme),
		Color:          orString(w.Color, d.Color),
		AvatarURL:      orString(w.AvatarURL, d.AvatarURL),
		LogoURL:        orString(w.LogoURL, d.LogoURL),
		ButtonIconURL:  orString(w.ButtonIconURL, d.ButtonIconURL),
		Position:       normalizePosition(w.Position, d.Position),
		Width:          orPositive(w.Width, d.Width),
		Height:         orPositive(w.Height, d.Height),
		BubbleSize:     orPositive(w.BubbleSize, d.BubbleSize),
		PopupText:      orString(w.PopupText, d.PopupText),
		PopupDelay:     normalizeDelay(w.PopupDelay, d.PopupDelay),
		MessageLimit:   normalizeLimit(w.MessageLimit),
		IsActive:       w.IsActive,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

// SnapshotDocument converts a version snapshot into a prompt document using
// the tolerant step parsers. A nil or undecodable snapshot yields an empty
// document.
func SnapshotDocument(v *domain.VersionSnapshot) prompt.Document {
	steps := repo.DecodeSnapshot(v)
	in := make([]prompt.StepContent, 0, len(steps))
	for _, s := range steps {
		in = append(in, prompt.StepContent{Step: s.Step, Content: s.Content})
	}
	return prompt.DocumentFromSteps(in)
}
