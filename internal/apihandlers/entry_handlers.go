package apihandlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"muninn/internal/models"
	"muninn/internal/store"
)

type entryRequest struct {
	Content string `json:"content"`
	TopicID *int64 `json:"topic_id"`
}

// scopeFromQuery reads the optional scope/topic_id query parameters.
// Listing defaults to every entry, unlike thread scopes.
func scopeFromQuery(c *gin.Context) (models.TopicScope, bool) {
	switch kind := c.Query("scope"); models.ScopeKind(kind) {
	case "", models.ScopeAll:
		return models.AllTopics, true
	case models.ScopeUncategorized:
		return models.UncategorizedOnly, true
	case models.ScopeSpecific:
		id, err := strconv.ParseInt(c.Query("topic_id"), 10, 64)
		if err != nil || id <= 0 {
			BadRequest(c, "scope=topic requires a positive topic_id")
			return models.TopicScope{}, false
		}
		return models.ScopeTopic(id), true
	default:
		BadRequest(c, "invalid scope "+strconv.Quote(kind))
		return models.TopicScope{}, false
	}
}

func (h *APIHandler) CreateEntryHandler(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	entry, err := h.App.EntryService.CreateEntry(c.Request.Context(), ownerID(c), req.Content, req.TopicID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (h *APIHandler) ListEntriesHandler(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	entries, err := h.App.EntryService.ListEntries(c.Request.Context(), ownerID(c), store.EntryFilter{
		Scope:  scope,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *APIHandler) SearchEntriesHandler(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	entries, err := h.App.EntryService.SearchEntries(c.Request.Context(), ownerID(c), c.Query("q"), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *APIHandler) GetEntryHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.App.EntryService.GetEntry(c.Request.Context(), ownerID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (h *APIHandler) UpdateEntryHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	entry, err := h.App.EntryService.UpdateEntry(c.Request.Context(), ownerID(c), id, req.Content, req.TopicID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (h *APIHandler) DeleteEntryHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.App.EntryService.DeleteEntry(c.Request.Context(), ownerID(c), id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
