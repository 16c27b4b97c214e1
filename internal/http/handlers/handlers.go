package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/prompt"
	"github.com/tbourn/go-bot-builder/internal/services"
	"github.com/tbourn/go-bot-builder/internal/widget"
)

//
// Service contracts (context-aware)
//

// ChatService answers public chat turns.
type ChatService interface {
	Turn(ctx context.Context, req services.TurnRequest) (*services.TurnResult, error)
}

// FeedbackService records visitor ratings on assistant messages.
type FeedbackService interface {
	Leave(ctx context.Context, conversationID, messageID string, value int) (*domain.Feedback, error)
}

// BotService covers bot authoring and the public bot card.
type BotService interface {
	Create(ctx context.Context, userID string, in services.BotInput) (*domain.Bot, error)
	Get(ctx context.Context, userID, botID string) (*domain.Bot, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Bot, int64, error)
	Info(ctx context.Context, botID string) (*domain.Bot, []domain.SuggestedPrompt, error)

	SaveStep(ctx context.Context, userID, botID string, step int, content string) (*domain.PromptStep, error)
	Steps(ctx context.Context, userID, botID string) ([]domain.PromptStep, error)
	Preview(ctx context.Context, userID, botID string) (prompt.Document, error)
	Generate(ctx context.Context, userID, botID, description string) (prompt.Document, error)

	PublishVersion(ctx context.Context, userID, botID, label string) (*domain.VersionSnapshot, error)
	Versions(ctx context.Context, userID, botID string) ([]domain.VersionSnapshot, error)

	AddSuggestedPrompt(ctx context.Context, userID, botID string, in services.SuggestedPromptInput) (*domain.SuggestedPrompt, error)
	SuggestedPrompts(ctx context.Context, userID, botID string) ([]domain.SuggestedPrompt, error)

	SetAPIKey(ctx context.Context, userID, key string) (*domain.APIKey, error)
}

// WidgetService manages a user's widgets.
type WidgetService interface {
	Create(ctx context.Context, userID string, in services.WidgetInput) (*domain.WidgetConfig, error)
	Update(ctx context.Context, userID, widgetID string, in services.WidgetInput) (*domain.WidgetConfig, error)
	Preview(ctx context.Context, userID, widgetID string) (*widget.Resolved, error)
}

// WidgetResolver serves the public widget configuration.
type WidgetResolver interface {
	Resolve(ctx context.Context, id string, c widget.Context) (*widget.Resolved, error)
}

// ConversationService lists a bot's conversations and their messages.
type ConversationService interface {
	ListPage(ctx context.Context, userID, botID string, page, pageSize int) ([]domain.Conversation, int64, error)
	MessagesPage(ctx context.Context, userID, botID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Script is the rendered widget.js.
type Deps struct {
	Chat          ChatService
	Feedback      FeedbackService
	Bots          BotService
	Widgets       WidgetService
	Resolver      WidgetResolver
	Conversations ConversationService
	Script        string
}

// Handlers groups every HTTP endpoint. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	chatSvc  ChatService
	fbSvc    FeedbackService
	botSvc   BotService
	wSvc     WidgetService
	resolver WidgetResolver
	convSvc  ConversationService
	script   string
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	return &Handlers{
		chatSvc:  d.Chat,
		fbSvc:    d.Feedback,
		botSvc:   d.Bots,
		wSvc:     d.Widgets,
		resolver: d.Resolver,
		convSvc:  d.Conversations,
		script:   d.Script,
	}
}

// failErr maps a service error to its HTTP status and code.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoMessages),
		errors.Is(err, services.ErrInvalidLastMessage),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidLanguage),
		errors.Is(err, services.ErrInvalidFeedback):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidToken):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrNoAPIKey):
		fail(c, http.StatusUnauthorized, ErrCodeNoAPIKey, err.Error())
	case errors.Is(err, services.ErrForbiddenFeedback):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrBotNotFound),
		errors.Is(err, services.ErrWidgetNotFound),
		errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateFeedback),
		errors.Is(err, services.ErrIdempotencyConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrMessageLimit):
		fail(c, http.StatusTooManyRequests, ErrCodeMessageLimit, err.Error())
	case errors.Is(err, services.ErrUpstream):
		detail := strings.TrimPrefix(err.Error(), services.ErrUpstream.Error())
		failDetail(c, http.StatusInternalServerError, ErrCodeUpstream,
			services.ErrUpstream.Error(), strings.TrimPrefix(detail, ": "))
	case errors.Is(err, services.ErrMalformedGeneration):
		fail(c, http.StatusBadGateway, ErrCodeBadGeneration, err.Error())
	default:
		// The cause stays in the access log.
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
