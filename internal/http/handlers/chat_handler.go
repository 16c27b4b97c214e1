// Public chat HTTP handlers.
//
// This file exposes the endpoints consumed by embedded widgets and demo UIs:
//   - POST /chat       (one chat turn)
//   - GET  /bot-info   (public bot card with suggested prompts)
//
// Every failure carries an `error` message that the widget renders as the
// assistant's reply.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/http/middleware"
	"github.com/tbourn/go-bot-builder/internal/prompt"
	"github.com/tbourn/go-bot-builder/internal/services"
)

//
// DTOs
//

// ChatMessage is one entry of a chat transcript.
type ChatMessage struct {
	Role    string `json:"role" example:"user"`
	Content string `json:"content" example:"What are your opening hours?"`
}

// ChatRequest is the body of POST /chat. Messages is the full transcript;
// the last entry is the new user message.
type ChatRequest struct {
	BotID          string        `json:"botId" example:"8b0d3c3e-2f0a-4f5e-9a59-1b2f4c6d7e8f"`
	Messages       []ChatMessage `json:"messages"`
	Token          string        `json:"token,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	WidgetID       string        `json:"widgetId,omitempty"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Message        ChatMessage `json:"message"`
	MessageID      string      `json:"messageId"`
	ConversationID string      `json:"conversationId"`
}

// BotCard is the public view of a bot.
type BotCard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Language string `json:"language"`
}

// SuggestedPromptCard is a suggested question. Fixed answers stay private.
type SuggestedPromptCard struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Context  *string `json:"context,omitempty"`
}

// BotInfoResponse is the body of GET /bot-info.
type BotInfoResponse struct {
	Bot              BotCard               `json:"bot"`
	SuggestedPrompts []SuggestedPromptCard `json:"suggestedPrompts"`
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Answer one chat turn
// @Description Answers the last user message of the transcript with the bot's fixed response or the language model, and persists both turns.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Stable key for retries of the same turn"  example(turn-7f3a)
// @Param       body             body    handlers.ChatRequest  true  "Chat turn"
//
// @Success     200  {object} handlers.ChatResponse
// @Header      200  {string} Idempotency-Replayed "true when served from a previous identical request"
// @Failure     400  {object} handlers.ErrorResponse "Missing or invalid messages"
// @Failure     401  {object} handlers.ErrorResponse "Invalid token or no API key on file"
// @Failure     404  {object} handlers.ErrorResponse "Bot, widget or conversation not found"
// @Failure     409  {object} handlers.ErrorResponse "Idempotency-Key reused for a different message"
// @Failure     429  {object} handlers.ErrorResponse "Message limit or rate limit reached"
// @Failure     500  {object} handlers.ErrorResponse "Upstream completion failure"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msgs := make([]prompt.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, prompt.Message{Role: strings.TrimSpace(m.Role), Content: m.Content})
	}
	key, _ := middleware.GetIdempotencyKey(c)

	res, err := h.chatSvc.Turn(c.Request.Context(), services.TurnRequest{
		BotID:          strings.TrimSpace(req.BotID),
		Messages:       msgs,
		Token:          req.Token,
		ConversationID: strings.TrimSpace(req.ConversationID),
		WidgetID:       strings.TrimSpace(req.WidgetID),
		IdempotencyKey: key,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusOK, ChatResponse{
		Message:        ChatMessage{Role: res.Message.Role, Content: res.Message.Content},
		MessageID:      res.Message.ID,
		ConversationID: res.ConversationID,
	})
}

// BotInfo godoc
// @ID          botInfo
// @Summary     Public bot card
// @Description Returns the bot's public fields and its suggested prompts. Fixed responses are never included.
// @Tags        Chat
// @Produce     json
// @Param       botId  query  string  true  "Bot ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.BotInfoResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing botId"
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bot-info [get]
func (h *Handlers) BotInfo(c *gin.Context) {
	botID := strings.TrimSpace(c.Query("botId"))
	if botID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "botId is required")
		return
	}
	bot, prompts, err := h.botSvc.Info(c.Request.Context(), botID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BotInfoResponse{
		Bot:              botCard(bot),
		SuggestedPrompts: promptCards(prompts),
	})
}

func botCard(b *domain.Bot) BotCard {
	return BotCard{ID: b.ID, Name: b.Name, Industry: b.Industry, Language: b.Language}
}

func promptCards(in []domain.SuggestedPrompt) []SuggestedPromptCard {
	out := make([]SuggestedPromptCard, 0, len(in))
	for _, p := range in {
		out = append(out, SuggestedPromptCard{ID: p.ID, Question: p.Question, Context: p.Context})
	}
	return out
}
