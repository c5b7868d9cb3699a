package routes

import (
	"context"
	"errors"
	"io"
	"net/http"

	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/queue"
	"abogacia-chatbot/internal/scraper"
	"abogacia-chatbot/services"
	"abogacia-chatbot/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type DocumentDeleter interface {
	DeleteDocumentAndFile(ctx context.Context, filename string) (*services.DeleteResult, error)
}

// DocumentHandlers serve acquisition and deletion. Enqueuer is optional.
type DocumentHandlers struct {
	Harvester     queue.Harvester
	Deleter       DocumentDeleter
	DefaultTopics map[string]int
	// Enqueuer is nil when no Redis queue is configured.
	Enqueuer TaskEnqueuer
}

type downloadRequest struct {
	Topics map[string]int `json:"temas_legales"`
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

// SetupDocumentRoutes registers the admin document routes behind adminAuth.
func SetupDocumentRoutes(router gin.IRouter, h *DocumentHandlers, adminAuth gin.HandlerFunc) {
	docs := router.Group("/")
	docs.Use(adminAuth)

	docs.POST("/download_documents/", h.downloadDocuments)
	docs.DELETE("/delete_document/", h.deleteDocument)
}

func (h *DocumentHandlers) downloadDocuments(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	topics := req.Topics
	if len(topics) == 0 {
		topics = h.DefaultTopics
	}
	for topic, quota := range topics {
		if topic == "" || quota < 0 {
			utils.RespondWithBadRequest(c, "Topic names must be non-empty and quotas non-negative", gin.H{"topic": topic, "quota": quota})
			return
		}
	}

	if c.Query("async") == "true" {
		if h.Enqueuer == nil {
			utils.RespondWithUnavailable(c, "Background downloads are not configured")
			return
		}
		task, err := queue.NewDownloadTask(topics)
		if err != nil {
			utils.RespondWithInternalError(c, err)
			return
		}
		info, err := h.Enqueuer.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			utils.RespondWithInternalError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task_id": info.ID})
		return
	}

	reports, err := h.Harvester.Run(c.Request.Context(), topics)
	if err != nil {
		logger.Error("Document download failed", "error", err)
		utils.RespondWithInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Documents downloaded successfully.",
		"topics":  reportsOrEmpty(reports),
	})
}

func reportsOrEmpty(reports []scraper.TopicReport) []scraper.TopicReport {
	if reports == nil {
		return []scraper.TopicReport{}
	}
	return reports
}

func (h *DocumentHandlers) deleteDocument(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	result, err := h.Deleter.DeleteDocumentAndFile(c.Request.Context(), req.Filename)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFilename) {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		logger.Error("Document delete failed", "filename", req.Filename, "error", err)
		utils.RespondWithInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
