// Feedback HTTP handlers.
//
// This file exposes the public endpoint widgets use to rate assistant replies:
//   - POST /chat/messages/{id}/feedback
//
// Values are constrained to {-1, +1}.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// LeaveFeedbackRequest is the JSON payload for rating a message. The
// conversation id scopes the message so visitors can only rate their own
// transcript.
type LeaveFeedbackRequest struct {
	ConversationID string `json:"conversationId" binding:"required" example:"0d4f2c1e-5b6a-4c3d-9e8f-7a6b5c4d3e2f"`
	// Value is the feedback signal: +1 (positive) or -1 (negative).
	Value int `json:"value" binding:"required,oneof=-1 1" example:"1"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Leave feedback on a message
// @Description Records positive (+1) or negative (-1) feedback for an assistant message of a conversation.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Message ID (UUID)"  format(uuid) example(fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b)
// @Param       body  body  handlers.LeaveFeedbackRequest true "Feedback payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     403  {object} handlers.ErrorResponse "Not an assistant message"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     409  {object} handlers.ErrorResponse "Feedback already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /chat/messages/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversationId is required and value must be -1 or 1")
		return
	}

	if _, err := h.fbSvc.Leave(c.Request.Context(), strings.TrimSpace(req.ConversationID), c.Param("id"), req.Value); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
