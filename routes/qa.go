package routes

import (
	"errors"
	"net/http"

	"docqa-backend/models"
	"docqa-backend/services"
	"docqa-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupQARoutes(router *gin.Engine, qa *services.QAService) {

	// Ask a question about the uploaded documents
	router.POST("/ask", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := qa.Answer(c.Request.Context(), req.Question, req.ConversationID, req.DocumentIDs)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrGenerationUnavailable):
				utils.RespondWithUnavailable(c, "The answer generation service is currently unavailable")
			case errors.Is(err, services.ErrIndexUnavailable):
				utils.RespondWithUnavailable(c, "The document index is currently unavailable")
			default:
				utils.RespondWithInternalError(c, "Failed to answer question", err.Error())
			}
			return
		}

		c.JSON(http.StatusOK, result)
	})

	// Chat history for one conversation
	router.GET("/conversation/:conversation_id", func(c *gin.Context) {
		conversationID := c.Param("conversation_id")

		history, err := qa.GetConversation(conversationID)
		if err != nil {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}

		c.JSON(http.StatusOK, history)
	})

	// All known conversation ids
	router.GET("/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"conversations": qa.ListConversations(),
		})
	})
}
