package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"muninn/internal/models"
)

// SearchTopicsHandler ranks every existing topic against a free-text query.
func (h *APIHandler) SearchTopicsHandler(c *gin.Context) {
	scores, err := h.App.CategorizationService.Search(c.Request.Context(), ownerID(c), c.Query("q"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": scores})
}

type suggestRequest struct {
	Text string `json:"text"`
}

// SuggestTopicsHandler ranks existing topics against a piece of text and
// prepends a fresh label suggestion when the oracle has one.
func (h *APIHandler) SuggestTopicsHandler(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	scores, err := h.App.CategorizationService.Suggest(c.Request.Context(), ownerID(c), req.Text)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": scores})
}

type quickCategorizeRequest struct {
	EntryIDs []int64 `json:"entry_ids"`
}

func (h *APIHandler) QuickCategorizeHandler(c *gin.Context) {
	var req quickCategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.EntryIDs) == 0 {
		BadRequest(c, "entry_ids must not be empty")
		return
	}
	suggestions, err := h.App.CategorizationService.QuickCategorize(c.Request.Context(), ownerID(c), req.EntryIDs)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": suggestions})
}

type recategorizeRequest struct {
	KeepTopicIDs []int64 `json:"keep_topic_ids"`
	Instructions string  `json:"instructions"`
}

// RecategorizeHandler builds a full reorganization proposal. The proposal
// is returned to the client for review; nothing is written until apply.
func (h *APIHandler) RecategorizeHandler(c *gin.Context) {
	var req recategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	proposal, err := h.App.CategorizationService.Recategorize(c.Request.Context(), ownerID(c), req.KeepTopicIDs, req.Instructions)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": proposal})
}

func (h *APIHandler) ApplyProposalHandler(c *gin.Context) {
	var proposal models.CategorizationProposal
	if err := c.ShouldBindJSON(&proposal); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.App.CategorizationService.Apply(c.Request.Context(), ownerID(c), &proposal); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"applied": true}})
}
