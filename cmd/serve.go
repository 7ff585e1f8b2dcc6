package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"muninn/internal/apihandlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run Muninn as an HTTP API server",
	Long: `Starts an HTTP server exposing entries, topics, categorization and chat
via a RESTful API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		router := gin.Default()
		h := apihandlers.NewAPIHandler(appInstance)

		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		v1 := router.Group("/api/v1")

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.RegisterHandler)
			authGroup.POST("/login", h.LoginHandler)
		}

		authed := v1.Group("")
		authed.Use(h.RequireAuth())
		{
			topicGroup := authed.Group("/topics")
			{
				topicGroup.POST("", h.CreateTopicHandler)
				topicGroup.GET("", h.ListTopicsHandler)
				topicGroup.GET("/:id", h.GetTopicHandler)
				topicGroup.PATCH("/:id", h.RenameTopicHandler)
				topicGroup.DELETE("/:id", h.DeleteTopicHandler)
			}

			entryGroup := authed.Group("/entries")
			{
				entryGroup.POST("", h.CreateEntryHandler)
				entryGroup.GET("", h.ListEntriesHandler)
				entryGroup.GET("/search", h.SearchEntriesHandler)
				entryGroup.GET("/:id", h.GetEntryHandler)
				entryGroup.PUT("/:id", h.UpdateEntryHandler)
				entryGroup.DELETE("/:id", h.DeleteEntryHandler)
			}

			catGroup := authed.Group("/categorization")
			{
				catGroup.GET("/search", h.SearchTopicsHandler)
				catGroup.POST("/suggest", h.SuggestTopicsHandler)
				catGroup.POST("/quick", h.QuickCategorizeHandler)
				catGroup.POST("/recategorize", h.RecategorizeHandler)
				catGroup.POST("/apply", h.ApplyProposalHandler)
			}

			chatGroup := authed.Group("/chat")
			{
				chatGroup.POST("/messages", h.StartChatHandler)
				chatGroup.POST("/threads", h.CreateThreadHandler)
				chatGroup.GET("/threads", h.ListThreadsHandler)
				chatGroup.GET("/threads/search", h.SearchThreadsHandler)
				chatGroup.GET("/threads/:id", h.GetThreadHandler)
				chatGroup.PATCH("/threads/:id", h.UpdateThreadHandler)
				chatGroup.GET("/threads/:id/messages", h.ListMessagesHandler)
				chatGroup.POST("/threads/:id/messages", h.SendMessageHandler)
				chatGroup.DELETE("/threads/:id/messages/:message_id", h.DeleteMessageHandler)
			}
		}

		addr := appInstance.Config.Server.Addr
		log.Infof("starting Muninn API server on %s", addr)
		if err := router.Run(addr); err != nil {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
