package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"muninn/internal/models"
	"muninn/internal/store"
)

type createThreadRequest struct {
	Title string             `json:"title"`
	Scope *models.TopicScope `json:"topic_scope"`
}

func (h *APIHandler) CreateThreadHandler(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	thread, err := h.App.ChatService.CreateThread(c.Request.Context(), ownerID(c), req.Title, req.Scope)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": thread})
}

func (h *APIHandler) ListThreadsHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	filter := store.ThreadFilter{Limit: limit, Offset: offset}
	if raw := c.Query("status"); raw != "" {
		status := models.ThreadStatus(raw)
		if status != models.ThreadStatusActive && status != models.ThreadStatusArchived {
			BadRequest(c, "invalid status")
			return
		}
		filter.Status = &status
	}
	if c.Query("scope") != "" {
		scope, ok := scopeFromQuery(c)
		if !ok {
			return
		}
		filter.Scope = &scope
	}

	threads, err := h.App.ChatService.ListThreads(c.Request.Context(), ownerID(c), filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": threads})
}

func (h *APIHandler) SearchThreadsHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	threads, err := h.App.ChatService.SearchThreads(c.Request.Context(), ownerID(c), c.Query("q"), limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": threads})
}

func (h *APIHandler) GetThreadHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	thread, err := h.App.ChatService.GetThread(c.Request.Context(), ownerID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thread})
}

type updateThreadRequest struct {
	Title  *string              `json:"title"`
	Status *models.ThreadStatus `json:"status"`
}

func (h *APIHandler) UpdateThreadHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Title == nil && req.Status == nil {
		BadRequest(c, "nothing to update")
		return
	}

	var thread *models.ChatThread
	var err error
	if req.Title != nil {
		thread, err = h.App.ChatService.RenameThread(c.Request.Context(), ownerID(c), id, *req.Title)
		if err != nil {
			RespondError(c, err)
			return
		}
	}
	if req.Status != nil {
		thread, err = h.App.ChatService.SetThreadStatus(c.Request.Context(), ownerID(c), id, *req.Status)
		if err != nil {
			RespondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": thread})
}

func (h *APIHandler) ListMessagesHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 100)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	msgs, err := h.App.ChatService.ListMessages(c.Request.Context(), ownerID(c), id, limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageHandler runs the full chat pipeline for one user message.
// A nil thread id in the path ("/messages" on the collection) is not
// supported here; new threads come from CreateThreadHandler or the
// dedicated no-thread send route.
func (h *APIHandler) SendMessageHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	msg, err := h.App.ChatService.ProcessMessage(c.Request.Context(), ownerID(c), &id, req.Text)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": msg})
}

// StartChatHandler sends a message without an existing thread; a fresh
// thread is created as part of the pipeline.
func (h *APIHandler) StartChatHandler(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	msg, err := h.App.ChatService.ProcessMessage(c.Request.Context(), ownerID(c), nil, req.Text)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": msg})
}

func (h *APIHandler) DeleteMessageHandler(c *gin.Context) {
	threadID, ok := pathID(c, "id")
	if !ok {
		return
	}
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	if err := h.App.ChatService.DeleteMessage(c.Request.Context(), ownerID(c), threadID, messageID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
