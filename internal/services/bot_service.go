// Package services – BotService
//
// This file implements the dashboard side of a bot: creation and listing,
// the two structured prompt steps, LLM-assisted generation of those steps,
// append-only version snapshots, suggested prompts and the owner's stored
// API key. Every method is scoped to the owning user.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/llm"
	"github.com/tbourn/go-bot-builder/internal/prompt"
	"github.com/tbourn/go-bot-builder/internal/repo"
	"github.com/tbourn/go-bot-builder/internal/utils"
)

// BotInput carries the editable fields of a bot.
type BotInput struct {
	Name     string
	Industry string
	Language string
	Model    string
	Prompt   string
}

// SuggestedPromptInput carries a new suggested prompt.
type SuggestedPromptInput struct {
	Question      string
	FixedResponse *string
	Context       *string
}

// BotService implements bot authoring.
type BotService struct {
	DB        *gorm.DB
	Completer llm.Completer

	// DefaultModel is used for generation when the bot has none.
	DefaultModel string
	MaxNameRunes int
}

// generationInstruction asks the model for the five-section document.
const generationInstruction = "You write system prompts for customer support chatbots. " +
	"Answer with exactly five sections, in this order, each opened and closed by its marker on its own line: " +
	"~Personality, ~Purpose, ~Tone, ~Rules, ~FAQ. " +
	"Example:\n~Personality\n...\n~Personality\n\n~Purpose\n...\n~Purpose\n\n" +
	"Write nothing outside the sections."

// Create inserts a bot owned by userID.
func (s *BotService) Create(ctx context.Context, userID string, in BotInput) (*domain.Bot, error) {
	name := normalizeSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	max := s.MaxNameRunes
	if max <= 0 {
		max = 255
	}
	if utf8.RuneCountInString(name) > max {
		return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, max)
	}
	lang, err := canonicalLanguage(in.Language)
	if err != nil {
		return nil, err
	}
	b := &domain.Bot{
		UserID:   userID,
		Name:     name,
		Industry: strings.TrimSpace(in.Industry),
		Language: lang,
		Model:    strings.TrimSpace(in.Model),
		Prompt:   strings.TrimSpace(in.Prompt),
	}
	if err := repo.CreateBot(ctx, s.DB, b); err != nil {
		return nil, err
	}
	return b, nil
}

// canonicalLanguage returns the canonical BCP 47 form of tag, or "" for blank.
func canonicalLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", nil
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", ErrInvalidLanguage
	}
	return t.String(), nil
}

// Get returns one of userID's bots.
func (s *BotService) Get(ctx context.Context, userID, botID string) (*domain.Bot, error) {
	b, err := repo.GetOwnedBot(ctx, s.DB, botID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListPage returns a page of userID's bots, newest first, and the total.
func (s *BotService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Bot, int64, error) {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	offset, limit := utils.PageWindow(page, pageSize)
	total, err := repo.CountBots(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Bot{}, 0, nil
	}
	items, err := repo.ListBotsPage(ctx, s.DB, userID, offset, limit)
	return items, total, err
}

// Info is the public bot card served by GET /bot-info.
func (s *BotService) Info(ctx context.Context, botID string) (*domain.Bot, []domain.SuggestedPrompt, error) {
	b, err := repo.GetBot(ctx, s.DB, botID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrBotNotFound
		}
		return nil, nil, err
	}
	prompts, err := repo.ListSuggestedPrompts(ctx, s.DB, b.ID)
	if err != nil {
		return nil, nil, err
	}
	return b, prompts, nil
}

// SaveStep validates and stores one prompt step.
func (s *BotService) SaveStep(ctx context.Context, userID, botID string, step int, content string) (*domain.PromptStep, error) {
	if _, err := s.Get(ctx, userID, botID); err != nil {
		return nil, err
	}
	if err := prompt.ValidateStepContent(step, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var out *domain.PromptStep
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := repo.UpsertStep(ctx, tx, botID, step, content)
		if err != nil {
			return err
		}
		out = st
		return repo.TouchBot(ctx, tx, botID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Steps returns the bot's stored steps.
func (s *BotService) Steps(ctx context.Context, userID, botID string) ([]domain.PromptStep, error) {
	if _, err := s.Get(ctx, userID, botID); err != nil {
		return nil, err
	}
	return repo.ListSteps(ctx, s.DB, botID)
}

// Preview renders the live steps as the preset document the chat would use.
func (s *BotService) Preview(ctx context.Context, userID, botID string) (prompt.Document, error) {
	steps, err := s.Steps(ctx, userID, botID)
	if err != nil {
		return prompt.Document{}, err
	}
	return prompt.DocumentFromSteps(toStepContent(steps)), nil
}

func toStepContent(steps []domain.PromptStep) []prompt.StepContent {
	out := make([]prompt.StepContent, 0, len(steps))
	for _, st := range steps {
		out = append(out, prompt.StepContent{Step: st.Step, Content: st.Content})
	}
	return out
}

// Generate asks the model to draft both steps from a free-text description.
// The reply must be a well-formed five-section document; only then are
// steps 1 and 2 overwritten.
func (s *BotService) Generate(ctx context.Context, userID, botID, description string) (prompt.Document, error) {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("bot.id", botID)),
	)
	defer span.End()

	description = strings.TrimSpace(description)
	if description == "" {
		return prompt.Document{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	bot, err := s.Get(ctx, userID, botID)
	if err != nil {
		return prompt.Document{}, err
	}
	key, err := repo.GetAPIKey(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return prompt.Document{}, ErrNoAPIKey
		}
		return prompt.Document{}, err
	}

	model := bot.Model
	if strings.TrimSpace(model) == "" {
		model = s.DefaultModel
	}
	if strings.TrimSpace(model) == "" {
		model = domain.DefaultModel
	}
	text, err := s.Completer.Complete(ctx, llm.Request{
		APIKey: key.Key,
		Model:  model,
		Messages: []prompt.Message{
			{Role: prompt.RoleSystem, Content: generationInstruction},
			{Role: prompt.RoleUser, Content: description},
		},
	})
	if err != nil {
		return prompt.Document{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	doc, err := prompt.ValidateDocument(text)
	if err != nil {
		log.Warn().Err(err).Str("bot_id", botID).Msg("generate: rejected model output")
		return prompt.Document{}, ErrMalformedGeneration
	}

	step1, _ := json.Marshal(doc.Step1())
	step2, _ := json.Marshal(doc.Step2())
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.UpsertStep(ctx, tx, botID, domain.StepPersona, string(step1)); err != nil {
			return err
		}
		if _, err := repo.UpsertStep(ctx, tx, botID, domain.StepRules, string(step2)); err != nil {
			return err
		}
		return repo.TouchBot(ctx, tx, botID)
	})
	if err != nil {
		return prompt.Document{}, err
	}
	return doc, nil
}

// PublishVersion snapshots the live steps. Widgets serve the latest snapshot.
func (s *BotService) PublishVersion(ctx context.Context, userID, botID, label string) (*domain.VersionSnapshot, error) {
	steps, err := s.Steps(ctx, userID, botID)
	if err != nil {
		return nil, err
	}
	snap := make([]domain.SnapshotStep, 0, len(steps))
	for _, st := range steps {
		snap = append(snap, domain.SnapshotStep{Step: st.Step, Content: st.Content})
	}
	return repo.CreateVersion(ctx, s.DB, botID, normalizeSpace(label), snap)
}

// Versions lists the bot's snapshots, newest first.
func (s *BotService) Versions(ctx context.Context, userID, botID string) ([]domain.VersionSnapshot, error) {
	if _, err := s.Get(ctx, userID, botID); err != nil {
		return nil, err
	}
	return repo.ListVersions(ctx, s.DB, botID)
}

// AddSuggestedPrompt stores a canned question, optionally with a fixed answer.
func (s *BotService) AddSuggestedPrompt(ctx context.Context, userID, botID string, in SuggestedPromptInput) (*domain.SuggestedPrompt, error) {
	if _, err := s.Get(ctx, userID, botID); err != nil {
		return nil, err
	}
	q := strings.TrimSpace(in.Question)
	if q == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	p := &domain.SuggestedPrompt{
		BotID:         botID,
		Question:      q,
		FixedResponse: trimmedOrNil(in.FixedResponse),
		Context:       trimmedOrNil(in.Context),
	}
	if err := repo.CreateSuggestedPrompt(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SuggestedPrompts lists the bot's suggested prompts.
func (s *BotService) SuggestedPrompts(ctx context.Context, userID, botID string) ([]domain.SuggestedPrompt, error) {
	if _, err := s.Get(ctx, userID, botID); err != nil {
		return nil, err
	}
	return repo.ListSuggestedPrompts(ctx, s.DB, botID)
}

// SetAPIKey stores userID's completion API key.
func (s *BotService) SetAPIKey(ctx context.Context, userID, key string) (*domain.APIKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	return repo.UpsertAPIKey(ctx, s.DB, userID, key)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// normalizeSpace trims and collapses inner whitespace.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
