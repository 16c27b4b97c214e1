// Bot authoring HTTP handlers (dashboard, authenticated).
//
//   - POST /api/v1/bots                               (create)
//   - GET  /api/v1/bots                               (list, paginated, ETag)
//   - GET  /api/v1/bots/{id}                          (read)
//   - GET  /api/v1/bots/{id}/steps                    (list steps)
//   - PUT  /api/v1/bots/{id}/steps/{step}             (save one step)
//   - POST /api/v1/bots/{id}/steps/generate           (draft both steps with the model)
//   - GET  /api/v1/bots/{id}/prompt                   (preset preview)
//   - POST /api/v1/bots/{id}/versions                 (publish snapshot)
//   - GET  /api/v1/bots/{id}/versions                 (list snapshots)
//   - POST /api/v1/bots/{id}/suggested-prompts        (add)
//   - GET  /api/v1/bots/{id}/suggested-prompts        (list)
//   - PUT  /api/v1/api-key                            (store completion key)
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/prompt"
	"github.com/tbourn/go-bot-builder/internal/repo"
	"github.com/tbourn/go-bot-builder/internal/services"
)

//
// DTOs
//

// CreateBotRequest is the JSON payload for creating a bot.
type CreateBotRequest struct {
	Name     string `json:"name" binding:"required" example:"Acme Support"`
	Industry string `json:"industry" example:"retail"`
	// Language is a BCP 47 tag.
	Language string `json:"language" example:"en-GB"`
	Model    string `json:"model" example:"gpt-4o-mini"`
	// Prompt is the fallback preset used when no steps are stored.
	Prompt string `json:"prompt"`
}

// ListBotsResponse wraps a page of bots and pagination information.
type ListBotsResponse struct {
	Bots       []domain.Bot `json:"bots"`
	Pagination Pagination   `json:"pagination"`
}

// SaveStepRequest carries a step's content. Content may be a JSON string or
// a JSON object; objects are stored in their compact encoding.
type SaveStepRequest struct {
	Content json.RawMessage `json:"content" binding:"required" swaggertype:"object"`
}

// GenerateRequest describes the bot to draft.
type GenerateRequest struct {
	Description string `json:"description" binding:"required" example:"A friendly assistant for a bike shop"`
}

// PromptResponse is a five-section preset and its serialized text.
type PromptResponse struct {
	Document prompt.Document `json:"document"`
	Text     string          `json:"text"`
}

// PublishVersionRequest labels a snapshot.
type PublishVersionRequest struct {
	Label string `json:"label" example:"v2 - summer sale"`
}

// SuggestedPromptRequest adds a suggested question.
type SuggestedPromptRequest struct {
	Question      string  `json:"question" binding:"required" example:"Do you ship abroad?"`
	FixedResponse *string `json:"fixed_response,omitempty" example:"Yes, to all EU countries."`
	Context       *string `json:"context,omitempty"`
}

// APIKeyRequest stores the caller's completion API key.
type APIKeyRequest struct {
	Key string `json:"key" binding:"required" example:"sk-..."`
}

// APIKeyResponse never includes the key itself.
type APIKeyResponse struct {
	Hint      string    `json:"hint" example:"sk-…abcd"`
	UpdatedAt time.Time `json:"updated_at"`
}

//
// Handlers
//

// CreateBot godoc
// @ID          createBot
// @Summary     Create a bot
// @Tags        Bots
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateBotRequest  true  "Bot"
// @Success     201  {object} domain.Bot
// @Failure     400  {object} handlers.ErrorResponse "Invalid bot"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/bots [post]
func (h *Handlers) CreateBot(c *gin.Context) {
	var req CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	b, err := h.botSvc.Create(c.Request.Context(), userID(c), services.BotInput{
		Name:     req.Name,
		Industry: req.Industry,
		Language: req.Language,
		Model:    req.Model,
		Prompt:   req.Prompt,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, b)
}

// ListBots godoc
// @ID          listBots
// @Summary     List bots (paginated)
// @Description Returns a page of the caller's bots. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Bots
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"bots:u1:3:1700000000\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListBotsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/bots [get]
func (h *Handlers) ListBots(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.botSvc.(*services.BotService); ok {
		db = svc.DB
	}
	if db != nil {
		if count, maxTS, err := repo.BotsStats(ctx, db, uid); err == nil {
			if weakETag(c, "bots", uid+":"+strconv.Itoa(page)+":"+strconv.Itoa(pageSize), count, maxTS) {
				return
			}
		}
	}

	items, total, err := h.botSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list bots")
		return
	}
	ok(c, http.StatusOK, ListBotsResponse{Bots: items, Pagination: newPagination(page, pageSize, total)})
}

// GetBot godoc
// @ID          getBot
// @Summary     Read a bot
// @Tags        Bots
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Bot ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Bot
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id} [get]
func (h *Handlers) GetBot(c *gin.Context) {
	b, err := h.botSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// ListSteps godoc
// @ID          listSteps
// @Summary     List a bot's prompt steps
// @Tags        Prompt
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Bot ID (UUID)"  format(uuid)
// @Success     200  {array}  domain.PromptStep
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/steps [get]
func (h *Handlers) ListSteps(c *gin.Context) {
	steps, err := h.botSvc.Steps(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, steps)
}

// SaveStep godoc
// @ID          saveStep
// @Summary     Save one prompt step
// @Description Step 1 holds {personality, purpose, tone}; step 2 holds {rules, faq} or plain text.
// @Tags        Prompt
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                    true  "Bot ID (UUID)"  format(uuid)
// @Param       step  path  int                       true  "Step number"    enums(1,2)
// @Param       body  body  handlers.SaveStepRequest  true  "Step content"
// @Success     200  {object} domain.PromptStep
// @Failure     400  {object} handlers.ErrorResponse "Invalid step or content"
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/steps/{step} [put]
func (h *Handlers) SaveStep(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil || (step != domain.StepPersona && step != domain.StepRules) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "step must be 1 or 2")
		return
	}
	var req SaveStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content is required")
		return
	}
	content := string(req.Content)
	var s string
	if json.Unmarshal(req.Content, &s) == nil {
		content = s
	}

	st, err := h.botSvc.SaveStep(c.Request.Context(), userID(c), c.Param("id"), step, content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// GenerateSteps godoc
// @ID          generateSteps
// @Summary     Draft both prompt steps with the language model
// @Description Asks the model for a five-section document and, when it is well formed, overwrites steps 1 and 2.
// @Tags        Prompt
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                    true  "Bot ID (UUID)"  format(uuid)
// @Param       body  body  handlers.GenerateRequest  true  "Description"
// @Success     200  {object} handlers.PromptResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing description"
// @Failure     401  {object} handlers.ErrorResponse "No API key on file"
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Failure     500  {object} handlers.ErrorResponse "Upstream failure"
// @Failure     502  {object} handlers.ErrorResponse "Malformed model output"
// @Router      /api/v1/bots/{id}/steps/generate [post]
func (h *Handlers) GenerateSteps(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "description is required")
		return
	}
	doc, err := h.botSvc.Generate(c.Request.Context(), userID(c), c.Param("id"), req.Description)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PromptResponse{Document: doc, Text: prompt.Serialize(doc)})
}

// PreviewPrompt godoc
// @ID          previewPrompt
// @Summary     Preview the preset built from the live steps
// @Tags        Prompt
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Bot ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.PromptResponse
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/prompt [get]
func (h *Handlers) PreviewPrompt(c *gin.Context) {
	doc, err := h.botSvc.Preview(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PromptResponse{Document: doc, Text: prompt.Serialize(doc)})
}

// PublishVersion godoc
// @ID          publishVersion
// @Summary     Snapshot the live steps
// @Description Appends a version; widgets always serve the latest one.
// @Tags        Prompt
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                          true   "Bot ID (UUID)"  format(uuid)
// @Param       body  body  handlers.PublishVersionRequest  false  "Label"
// @Success     201  {object} domain.VersionSnapshot
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/versions [post]
func (h *Handlers) PublishVersion(c *gin.Context) {
	var req PublishVersionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	v, err := h.botSvc.PublishVersion(c.Request.Context(), userID(c), c.Param("id"), req.Label)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// ListVersions godoc
// @ID          listVersions
// @Summary     List a bot's snapshots, newest first
// @Tags        Prompt
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Bot ID (UUID)"  format(uuid)
// @Success     200  {array}  domain.VersionSnapshot
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/versions [get]
func (h *Handlers) ListVersions(c *gin.Context) {
	vs, err := h.botSvc.Versions(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, vs)
}

// AddSuggestedPrompt godoc
// @ID          addSuggestedPrompt
// @Summary     Add a suggested prompt
// @Description A non-empty fixed_response is returned verbatim when a visitor asks exactly this question.
// @Tags        Bots
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                           true  "Bot ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SuggestedPromptRequest  true  "Suggested prompt"
// @Success     201  {object} domain.SuggestedPrompt
// @Failure     400  {object} handlers.ErrorResponse "Missing question"
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/suggested-prompts [post]
func (h *Handlers) AddSuggestedPrompt(c *gin.Context) {
	var req SuggestedPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question is required")
		return
	}
	p, err := h.botSvc.AddSuggestedPrompt(c.Request.Context(), userID(c), c.Param("id"), services.SuggestedPromptInput{
		Question:      req.Question,
		FixedResponse: req.FixedResponse,
		Context:       req.Context,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListSuggestedPrompts godoc
// @ID          listSuggestedPrompts
// @Summary     List a bot's suggested prompts
// @Tags        Bots
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Bot ID (UUID)"  format(uuid)
// @Success     200  {array}  domain.SuggestedPrompt
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/suggested-prompts [get]
func (h *Handlers) ListSuggestedPrompts(c *gin.Context) {
	ps, err := h.botSvc.SuggestedPrompts(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ps)
}

// SetAPIKey godoc
// @ID          setAPIKey
// @Summary     Store the caller's completion API key
// @Description The key is used for every chat turn of the caller's bots. Only a masked hint is returned.
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.APIKeyRequest  true  "Key"
// @Success     200  {object} handlers.APIKeyResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing key"
// @Router      /api/v1/api-key [put]
func (h *Handlers) SetAPIKey(c *gin.Context) {
	var req APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "key is required")
		return
	}
	k, err := h.botSvc.SetAPIKey(c.Request.Context(), userID(c), req.Key)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, APIKeyResponse{Hint: k.Hint(), UpdatedAt: k.UpdatedAt})
}
