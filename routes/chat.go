package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/chat"
	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/telemetry"
	"abogacia-chatbot/services"
	"abogacia-chatbot/utils"

	"github.com/gin-gonic/gin"
)

// DefaultAnswer is returned for blank questions and empty model replies.
const DefaultAnswer = "Please enter a valid question"

// ChatHandlers serve the chat endpoints.
type ChatHandlers struct {
	Registry *chat.Registry
	Exporter *services.ExportService
	Metrics  *telemetry.Metrics
	// Model labels token metrics.
	Model string
}

type loadHistoryRequest struct {
	SessionID string `json:"session_id"`
}

type askRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type askResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error"`
}

// SetupChatRoutes registers the chat, export and health routes.
func SetupChatRoutes(router gin.IRouter, h *ChatHandlers) {
	router.POST("/load_chat_history", h.loadChatHistory)
	router.POST("/ask_chain_bot", h.askChainBot)
	router.GET("/export_chat_history/:session_id", h.exportChatHistory)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"sessions":  h.Registry.Len(),
			"timestamp": time.Now(),
		})
	})
}

func (h *ChatHandlers) loadChatHistory(c *gin.Context) {
	var req loadHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		utils.RespondWithBadRequest(c, "session_id is required", nil)
		return
	}

	bot, created, err := h.Registry.Open(req.SessionID)
	if err != nil {
		utils.RespondWithInternalError(c, err)
		return
	}
	if created {
		logger.Info("Chat session created", "session_id", req.SessionID)
	}

	ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
	defer cancel()

	msgs, err := bot.History(ctx)
	if err != nil {
		logger.Error("Failed to load chat history", "session_id", req.SessionID, "error", err)
		utils.RespondWithInternalError(c, err)
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"chat_history": msgs})
}

func (h *ChatHandlers) askChainBot(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
		return
	}

	bot, err := h.Registry.Get(req.SessionID)
	if errors.Is(err, chat.ErrSessionNotFound) {
		c.JSON(http.StatusOK, askResponse{
			Answer: "",
			Error:  fmt.Sprintf("Session with session_id '%s' not found. Please create a new session.", req.SessionID),
		})
		return
	}

	resp := askResponse{Answer: DefaultAnswer}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	ctx, cancel := utils.WithAnswerTimeout(c.Request.Context())
	defer cancel()

	answer, err := bot.Ask(ctx, req.Query)
	if err != nil {
		logger.Error("Failed to answer question", "session_id", req.SessionID, "error", err)
		if errors.Is(err, ai.ErrCircuitOpen) {
			// nothing was stored, so the user can simply ask again
			c.JSON(http.StatusOK, askResponse{Answer: ai.FallbackAnswer})
			return
		}
		if errors.Is(err, ai.ErrQuotaExhausted) {
			utils.RespondWithUnavailable(c, err.Error())
			return
		}
		utils.RespondWithInternalError(c, err)
		return
	}
	h.Metrics.RecordTokensUsed(int64(answer.Tokens), h.Model)

	if answer.Text != "" {
		resp.Answer = answer.Text
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandlers) exportChatHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.Registry.Get(sessionID); err != nil {
		utils.RespondWithNotFound(c, fmt.Sprintf("Session with session_id '%s' not found.", sessionID))
		return
	}

	ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
	defer cancel()

	data, err := h.Exporter.Collect(ctx, sessionID)
	if err != nil {
		utils.RespondWithInternalError(c, err)
		return
	}

	switch format := c.DefaultQuery("format", services.ExportFormatExcel); format {
	case services.ExportFormatJSON:
		raw, err := h.Exporter.JSON(data)
		if err != nil {
			utils.RespondWithInternalError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="chat_%s.json"`, sessionID))
		c.Data(http.StatusOK, "application/json", raw)
	case services.ExportFormatExcel:
		raw, err := h.Exporter.Excel(data)
		if err != nil {
			utils.RespondWithInternalError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="chat_%s.xlsx"`, sessionID))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", raw)
	default:
		utils.RespondWithBadRequest(c, "format must be json or excel", gin.H{"format": format})
	}
}
