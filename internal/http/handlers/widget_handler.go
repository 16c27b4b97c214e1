// Widget HTTP handlers.
//
// Public:
//   - GET /widget-config/{id}   (resolved configuration, weak ETag)
//   - GET /widget.js            (embed script)
//
// Dashboard (authenticated):
//   - POST /api/v1/widgets
//   - PUT  /api/v1/widgets/{id}
//   - GET  /api/v1/widgets/{id}/preview
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-builder/internal/services"
	"github.com/tbourn/go-bot-builder/internal/widget"
)

// WidgetRequest is the editable part of a widget. Omitted optional fields
// resolve to defaults at read time.
type WidgetRequest struct {
	BotID          string  `json:"bot_id" example:"8b0d3c3e-2f0a-4f5e-9a59-1b2f4c6d7e8f"`
	Title          string  `json:"title" example:"Ask us anything"`
	WelcomeMessage string  `json:"welcome_message" example:"Hi! How can I help?"`
	Theme          *string `json:"theme,omitempty" example:"light"`
	Color          *string `json:"color,omitempty" example:"#4A90E2"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	LogoURL        *string `json:"logo_url,omitempty"`
	ButtonIconURL  *string `json:"button_icon_url,omitempty"`
	Position       *string `json:"position,omitempty" example:"bottom-right"`
	Width          *int    `json:"width,omitempty" example:"400"`
	Height         *int    `json:"height,omitempty" example:"600"`
	BubbleSize     *int    `json:"bubble_size,omitempty" example:"56"`
	PopupText      *string `json:"popup_text,omitempty" example:"Questions? Chat with us"`
	// PopupDelay is in milliseconds.
	PopupDelay   *int  `json:"popup_delay,omitempty" example:"3000"`
	MessageLimit *int  `json:"message_limit,omitempty" example:"-1"`
	IsActive     *bool `json:"is_active,omitempty" example:"true"`
}

func (r WidgetRequest) input() services.WidgetInput {
	return services.WidgetInput{
		BotID:          r.BotID,
		Title:          r.Title,
		WelcomeMessage: r.WelcomeMessage,
		Theme:          r.Theme,
		Color:          r.Color,
		AvatarURL:      r.AvatarURL,
		LogoURL:        r.LogoURL,
		ButtonIconURL:  r.ButtonIconURL,
		Position:       r.Position,
		Width:          r.Width,
		Height:         r.Height,
		BubbleSize:     r.BubbleSize,
		PopupText:      r.PopupText,
		PopupDelay:     r.PopupDelay,
		MessageLimit:   r.MessageLimit,
		IsActive:       r.IsActive,
	}
}

// GetWidgetConfig godoc
// @ID          getWidgetConfig
// @Summary     Resolved widget configuration
// @Description Returns the widget with every cosmetic default filled in and its bot's latest prompt version. Supports weak ETag via If-None-Match.
// @Tags        Widgets
// @Produce     json
// @Param       id             path    string  true   "Widget ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object} widget.Resolved
// @Header      200  {string} ETag "Weak ETag of the resolved configuration"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Widget not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /widget-config/{id} [get]
func (h *Handlers) GetWidgetConfig(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), c.Param("id"), widget.ContextEmbed)
	if err != nil {
		if errors.Is(err, widget.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "widget not found")
			return
		}
		failErr(c, err)
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		failErr(c, err)
		return
	}
	hs := fnv.New64a()
	_, _ = hs.Write(body)
	if checkETag(c, fmt.Sprintf(`W/"widget:%x"`, hs.Sum64())) {
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// WidgetScript godoc
// @ID          widgetScript
// @Summary     Embed script
// @Description Serves the script exposing window.BotBuilderWidget.init({widgetId, webUrl}).
// @Tags        Widgets
// @Produce     application/javascript
// @Success     200  {string} string "JavaScript"
// @Router      /widget.js [get]
func (h *Handlers) WidgetScript(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(h.script))
}

// CreateWidget godoc
// @ID          createWidget
// @Summary     Create a widget
// @Tags        Widgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.WidgetRequest  true  "Widget"
// @Success     201  {object} domain.WidgetConfig
// @Failure     400  {object} handlers.ErrorResponse "Invalid widget"
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/widgets [post]
func (h *Handlers) CreateWidget(c *gin.Context) {
	var req WidgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	w, err := h.wSvc.Create(c.Request.Context(), userID(c), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, w)
}

// UpdateWidget godoc
// @ID          updateWidget
// @Summary     Replace a widget's settings
// @Tags        Widgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                  true  "Widget ID (UUID)"  format(uuid)
// @Param       body  body  handlers.WidgetRequest  true  "Widget"
// @Success     200  {object} domain.WidgetConfig
// @Failure     400  {object} handlers.ErrorResponse "Invalid widget"
// @Failure     404  {object} handlers.ErrorResponse "Widget or bot not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/widgets/{id} [put]
func (h *Handlers) UpdateWidget(c *gin.Context) {
	var req WidgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	w, err := h.wSvc.Update(c.Request.Context(), userID(c), c.Param("id"), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// PreviewWidget godoc
// @ID          previewWidget
// @Summary     Dashboard preview of a widget
// @Description Resolves one of the caller's widgets with the in-app preview defaults.
// @Tags        Widgets
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Widget ID (UUID)"  format(uuid)
// @Success     200  {object} widget.Resolved
// @Failure     404  {object} handlers.ErrorResponse "Widget not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/widgets/{id}/preview [get]
func (h *Handlers) PreviewWidget(c *gin.Context) {
	res, err := h.wSvc.Preview(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
