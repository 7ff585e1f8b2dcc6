package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type topicRequest struct {
	Name string `json:"name"`
}

func (h *APIHandler) CreateTopicHandler(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	topic, err := h.App.TopicService.CreateTopic(c.Request.Context(), ownerID(c), req.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": topic})
}

func (h *APIHandler) ListTopicsHandler(c *gin.Context) {
	overviews, err := h.App.TopicService.ListOverviews(c.Request.Context(), ownerID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": overviews})
}

func (h *APIHandler) GetTopicHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	topic, err := h.App.TopicService.GetTopic(c.Request.Context(), ownerID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": topic})
}

func (h *APIHandler) RenameTopicHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	topic, err := h.App.TopicService.RenameTopic(c.Request.Context(), ownerID(c), id, req.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": topic})
}

func (h *APIHandler) DeleteTopicHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.App.TopicService.DeleteTopic(c.Request.Context(), ownerID(c), id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
