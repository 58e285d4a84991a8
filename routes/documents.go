package routes

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"docqa-backend/internal/config"
	"docqa-backend/services"
	"docqa-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, documents *services.DocumentService) {

	// Upload a PDF or TXT document for indexing
	router.POST("/upload", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file is required", gin.H{"error": err.Error()})
			return
		}

		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File exceeds the maximum allowed size", gin.H{"max_file_size": cfg.MaxFileSize})
			return
		}

		filename := fileHeader.Filename
		fileType := ""
		if idx := strings.LastIndex(filename, "."); idx >= 0 {
			fileType = strings.ToLower(filename[idx+1:])
		}
		if !allowedType(cfg.AllowedTypes, fileType) {
			utils.RespondWithError(c, http.StatusBadRequest, "unsupported_file_type",
				"Only PDF and TXT files are supported", gin.H{"file_type": fileType})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", err.Error())
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", err.Error())
			return
		}

		documentID, err := documents.Ingest(c.Request.Context(), content, filename, fileType)
		if err != nil {
			respondDocumentError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": documentID,
			"filename":    filename,
		})
	})

	// List all uploaded documents with their metadata
	router.GET("/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, documents.List())
	})

	// Document store statistics
	router.GET("/documents/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, documents.Stats())
	})

	// Delete a document and all of its indexed chunks
	router.DELETE("/documents/:document_id", func(c *gin.Context) {
		documentID := c.Param("document_id")

		existed, err := documents.Delete(c.Request.Context(), documentID)
		if !existed {
			utils.RespondWithNotFound(c, "Document not found: "+documentID)
			return
		}
		if err != nil {
			respondDocumentError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"document_id": documentID,
		})
	})
}

func allowedType(allowed []string, fileType string) bool {
	for _, t := range allowed {
		if strings.EqualFold(strings.TrimSpace(t), fileType) {
			return true
		}
	}
	return false
}

func respondDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedFileType):
		utils.RespondWithError(c, http.StatusBadRequest, "unsupported_file_type",
			"Only PDF and TXT files are supported", gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrIndexUnavailable):
		utils.RespondWithUnavailable(c, "The document index is currently unavailable")
	default:
		utils.RespondWithInternalError(c, "Failed to process document", err.Error())
	}
}
