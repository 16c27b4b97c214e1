// Conversation HTTP handlers (dashboard, authenticated).
//
//   - GET /api/v1/bots/{id}/conversations                  (paginated, ETag)
//   - GET /api/v1/bots/{id}/conversations/{cid}/messages   (paginated, ETag)
//
// Ownership is checked by the service before any ETag is computed, so a
// stranger cannot probe counts with If-None-Match.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-builder/internal/domain"
	"github.com/tbourn/go-bot-builder/internal/repo"
	"github.com/tbourn/go-bot-builder/internal/services"
)

// ListConversationsResponse wraps a page of conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListMessagesResponse wraps a page of messages.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List a bot's conversations (paginated)
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    string  true   "Bot ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListConversationsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /api/v1/bots/{id}/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	botID := c.Param("id")
	page, pageSize := clampPagination(c)

	items, total, err := h.convSvc.ListPage(ctx, userID(c), botID, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if svc, ok := h.convSvc.(*services.ConversationService); ok && svc.DB != nil {
		if count, maxTS, err := repo.ConversationsStats(ctx, svc.DB, botID); err == nil {
			if weakETag(c, "conversations", botID+":"+strconv.Itoa(page)+":"+strconv.Itoa(pageSize), count, maxTS) {
				return
			}
		}
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: items, Pagination: newPagination(page, pageSize, total)})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List a conversation's messages (paginated)
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    string  true   "Bot ID (UUID)"           format(uuid)
// @Param       cid            path    string  true   "Conversation ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Bot or conversation not found"
// @Router      /api/v1/bots/{id}/conversations/{cid}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("cid")
	page, pageSize := clampPagination(c)

	items, total, err := h.convSvc.MessagesPage(ctx, userID(c), c.Param("id"), convID, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if svc, ok := h.convSvc.(*services.ConversationService); ok && svc.DB != nil {
		if count, maxTS, err := repo.MessagesStats(ctx, svc.DB, convID); err == nil {
			if weakETag(c, "messages", convID+":"+strconv.Itoa(page)+":"+strconv.Itoa(pageSize), count, maxTS) {
				return
			}
		}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}
