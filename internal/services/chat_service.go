// Package services – ChatService
//
// This file implements the chat turn: it validates the visitor's message
// list, resolves the bot (and optional widget), answers from a fixed
// response when a suggested prompt matches exactly, and otherwise assembles
// the prompt and calls the completion API with the bot owner's key. Both
// turns are persisted in one transaction.
//
// Observability: Turn is OpenTelemetry-instrumented and counts outcomes in
// observability.ChatTurns.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/auth"
	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/llm"
	"github.com/tbourn/go-bot-builder/internal/observability"
	"github.com/tbourn/go-bot-builder/internal/prompt"
	"github.com/tbourn/go-bot-builder/internal/repo"
	"github.com/tbourn/go-bot-builder/internal/widget"
)

const defaultTitle = "New chat"

// DefaultTitleMaxLen bounds generated conversation titles, in runes.
const DefaultTitleMaxLen = 60

// TurnRequest is one POST /chat call.
type TurnRequest struct {
	BotID          string
	Messages       []prompt.Message
	Token          string
	ConversationID string
	WidgetID       string
	IdempotencyKey string
}

// TurnResult is the persisted assistant reply.
type TurnResult struct {
	Message        *domain.Message
	ConversationID string
	Replayed       bool
}

// ChatService answers chat turns.
type ChatService struct {
	DB        *gorm.DB
	Completer llm.Completer
	// Tokens verifies the optional visitor token. When nil, any token is rejected.
	Tokens *auth.Verifier

	DefaultModel   string
	MaxPromptRunes int
	IdempotencyTTL time.Duration

	TitleLocale language.Tag
	TitleMaxLen int

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *ChatService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Turn answers the last message of req.Messages.
func (s *ChatService) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Turn",
		trace.WithAttributes(
			attribute.String("bot.id", req.BotID),
			attribute.String("widget.id", req.WidgetID),
			attribute.String("conversation.id", req.ConversationID),
			attribute.Int("messages", len(req.Messages)),
		),
	)
	defer span.End()

	res, outcome, err := s.turn(ctx, req)
	if err != nil {
		observability.ChatTurns.WithLabelValues(observability.OutcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	observability.ChatTurns.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("chat.outcome", outcome))
	return res, nil
}

func (s *ChatService) turn(ctx context.Context, req TurnRequest) (*TurnResult, string, error) {
	prior, question, err := s.validate(req.Messages)
	if err != nil {
		return nil, "", err
	}

	bot, err := repo.GetBot(ctx, s.DB, req.BotID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrBotNotFound
		}
		return nil, "", err
	}

	visitorID := ""
	if strings.TrimSpace(req.Token) != "" {
		claims, err := s.Tokens.Verify(req.Token)
		if err != nil {
			return nil, "", ErrInvalidToken
		}
		visitorID = claims.Subject
	}

	var idem *domain.Idempotency
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		idem = &domain.Idempotency{
			BotID:       bot.ID,
			Scope:       req.ConversationID,
			Key:         key,
			RequestHash: requestHash(visitorID, question),
		}
		if res, err := s.replay(ctx, idem); err != nil || res != nil {
			return res, observability.OutcomeReplayed, err
		}
	}

	var w *domain.WidgetConfig
	if req.WidgetID != "" {
		w, err = repo.GetWidget(ctx, s.DB, req.WidgetID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, "", err
		}
		if w == nil || w.BotID != bot.ID || !w.IsActive {
			return nil, "", ErrWidgetNotFound
		}
	}

	var conv *domain.Conversation
	if req.ConversationID != "" {
		conv, err = repo.GetConversation(ctx, s.DB, req.ConversationID, bot.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, "", ErrConversationNotFound
			}
			return nil, "", err
		}
	}

	if w != nil && w.MessageLimit >= 0 {
		var used int64
		if conv != nil {
			if used, err = repo.CountUserMessages(ctx, s.DB, conv.ID); err != nil {
				return nil, "", err
			}
		}
		if used >= int64(w.MessageLimit) {
			return nil, "", ErrMessageLimit
		}
	}

	reply, source, err := s.answer(ctx, bot, w, prior, question)
	if err != nil {
		return nil, "", err
	}

	res, err := s.persist(ctx, bot, w, conv, visitorID, question, reply, source, idem)
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent retry with the same key won the insert.
		if res, rerr := s.replay(ctx, idem); rerr != nil || res != nil {
			return res, observability.OutcomeReplayed, rerr
		}
	}
	if err != nil {
		return nil, "", err
	}
	outcome := observability.OutcomeLLM
	if source == domain.SourceFixed {
		outcome = observability.OutcomeFixed
	}
	return res, outcome, nil
}

// validate splits messages into prior turns and the new question.
func (s *ChatService) validate(msgs []prompt.Message) ([]prompt.Message, string, error) {
	if len(msgs) == 0 {
		return nil, "", ErrNoMessages
	}
	last := msgs[len(msgs)-1]
	question := strings.TrimSpace(last.Content)
	if last.Role != prompt.RoleUser || question == "" {
		return nil, "", ErrInvalidLastMessage
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(question) > s.MaxPromptRunes {
		return nil, "", ErrTooLong
	}
	prior := msgs[:len(msgs)-1]
	for _, m := range prior {
		if m.Role != prompt.RoleUser && m.Role != prompt.RoleAssistant {
			return nil, "", ErrInvalidRole
		}
	}
	return prior, question, nil
}

// answer returns the reply text and its source (fixed or llm).
func (s *ChatService) answer(ctx context.Context, bot *domain.Bot, w *domain.WidgetConfig, prior []prompt.Message, question string) (string, string, error) {
	fixed, ok, err := repo.FindFixedResponse(ctx, s.DB, bot.ID, question)
	if err != nil {
		return "", "", err
	}
	if ok {
		log.Debug().Str("bot_id", bot.ID).Msg("chat: answered from fixed response")
		return fixed, domain.SourceFixed, nil
	}

	key, err := repo.GetAPIKey(ctx, s.DB, bot.UserID)
	if err != nil || strings.TrimSpace(key.Key) == "" {
		if err == nil || errors.Is(err, repo.ErrNotFound) {
			return "", "", ErrNoAPIKey
		}
		return "", "", err
	}

	preset, err := s.preset(ctx, bot, w)
	if err != nil {
		return "", "", err
	}

	model := strings.TrimSpace(bot.Model)
	if model == "" {
		model = s.DefaultModel
	}
	if model == "" {
		model = domain.DefaultModel
	}

	msgs := prompt.Assemble(prompt.GuardrailPreamble, preset, prior, question)
	reply, err := s.Completer.Complete(ctx, llm.Request{APIKey: key.Key, Model: model, Messages: msgs})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		log.Warn().Err(err).Str("bot_id", bot.ID).Str("model", model).Msg("chat: completion failed")
		return "", "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return reply, domain.SourceLLM, nil
}

// preset picks the bot's system prompt. A widget chat uses the latest
// published snapshot; otherwise, or when nothing was published, the live
// steps. An empty document falls back to the bot's free-form prompt, and a
// blank prompt to prompt.DefaultPreset (inside Assemble).
func (s *ChatService) preset(ctx context.Context, bot *domain.Bot, w *domain.WidgetConfig) (string, error) {
	if w != nil {
		v, err := repo.LatestVersion(ctx, s.DB, bot.ID)
		switch {
		case err == nil:
			if doc := widget.SnapshotDocument(v); !doc.IsEmpty() {
				return prompt.Serialize(doc), nil
			}
		case !errors.Is(err, repo.ErrNotFound):
			return "", err
		}
	}

	steps, err := repo.ListSteps(ctx, s.DB, bot.ID)
	if err != nil {
		return "", err
	}
	in := make([]prompt.StepContent, 0, len(steps))
	for _, st := range steps {
		in = append(in, prompt.StepContent{Step: st.Step, Content: st.Content})
	}
	if doc := prompt.DocumentFromSteps(in); !doc.IsEmpty() {
		return prompt.Serialize(doc), nil
	}
	return bot.Prompt, nil
}

func (s *ChatService) persist(ctx context.Context, bot *domain.Bot, w *domain.WidgetConfig, conv *domain.Conversation, visitorID, question, reply, source string, idem *domain.Idempotency) (*TurnResult, error) {
	now := s.now()
	res := &TurnResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if conv == nil {
			var widgetID *string
			if w != nil {
				id := w.ID
				widgetID = &id
			}
			title := s.generateTitle(question)
			if title == "" {
				title = defaultTitle
			}
			c, err := repo.CreateConversation(ctx, tx, bot.ID, widgetID, visitorID, title)
			if err != nil {
				return err
			}
			conv = c
		}
		if _, err := repo.CreateMessage(ctx, tx, conv.ID, domain.RoleUser, question, domain.SourceUser, now); err != nil {
			return err
		}
		m, err := repo.CreateMessage(ctx, tx, conv.ID, domain.RoleAssistant, reply, source, now.Add(time.Millisecond))
		if err != nil {
			return err
		}
		if err := repo.TouchConversation(ctx, tx, conv.ID, now.Add(time.Millisecond)); err != nil {
			return err
		}
		if idem != nil {
			rec := *idem
			rec.ConversationID = conv.ID
			rec.MessageID = m.ID
			rec.Status = 200
			if _, err := repo.CreateIdempotency(ctx, tx, &rec, s.idempotencyTTL()); err != nil {
				return err
			}
		}
		res.Message = m
		res.ConversationID = conv.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ChatService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

// requestHash fingerprints the content an Idempotency-Key is bound to.
func requestHash(visitorID, question string) string {
	sum := sha256.Sum256([]byte(visitorID + "\x00" + question))
	return hex.EncodeToString(sum[:])
}

// replay returns the stored reply for the key's bot and conversation, or nil
// when there is none. A key reused for different content is a conflict.
func (s *ChatService) replay(ctx context.Context, idem *domain.Idempotency) (*TurnResult, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, idem.BotID, idem.Scope, idem.Key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.RequestHash != idem.RequestHash {
		return nil, ErrIdempotencyConflict
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &TurnResult{Message: m, ConversationID: rec.ConversationID, Replayed: true}, nil
}

// generateTitle derives a concise title from the first user message.
func (s *ChatService) generateTitle(question string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(question), -1)
	if len(toks) == 0 {
		return ""
	}
	locale := s.TitleLocale
	if locale == language.Und {
		locale = language.English
	}
	caser := cases.Title(locale)
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	title := strings.Join(out, " ")
	max := s.TitleMaxLen
	if max <= 0 {
		max = DefaultTitleMaxLen
	}
	if utf8.RuneCountInString(title) > max {
		cut := string([]rune(title)[:max+1])
		// Drop the partial last word unless it is the only one.
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		} else {
			cut = string([]rune(title)[:max])
		}
		title = strings.TrimSpace(cut)
	}
	return title
}

// Letters with optional trailing digits ("gpt4").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"do": {}, "does": {}, "can": {}, "you": {}, "i": {}, "me": {}, "my": {}, "what": {},
}
