package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// ChatHandler handles chat sessions and assistant intents
type ChatHandler struct {
	chatService ports.ChatService
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService ports.ChatService, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// CreateSession handles starting a new chat session
func (h *ChatHandler) CreateSession(c echo.Context) error {
	session, err := h.chatService.CreateSession(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

// GetSession handles getting a session with its history
func (h *ChatHandler) GetSession(c echo.Context) error {
	session, err := h.chatService.GetSession(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// AppendMessage handles adding a message to a session
func (h *ChatHandler) AppendMessage(c echo.Context) error {
	var req ports.ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.chatService.AppendMessage(c.Request().Context(), c.Param("sessionId"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession handles session deletion
func (h *ChatHandler) DeleteSession(c echo.Context) error {
	if err := h.chatService.DeleteSession(c.Request().Context(), c.Param("sessionId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Session deleted successfully"})
}

// ExecuteIntent handles a structured intent produced by the assistant
func (h *ChatHandler) ExecuteIntent(c echo.Context) error {
	var req ports.IntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.chatService.ExecuteIntent(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Intent failed", "intent", req.Intent, "error", err)
		return err
	}

	return c.JSON(http.StatusOK, result)
}
