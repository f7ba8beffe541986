package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessagesHandler exposes the transcript truncation operations used by the
// regenerate flows.
type MessagesHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(service ChatService, logger *zap.Logger) *MessagesHandler {
	return &MessagesHandler{service: service, logger: logger}
}

// RegisterRoutes registers the messages handler's routes on the given mux.
func (h *MessagesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("DELETE /messages/delete-last-message/{chatId}", h.DeleteLast)
	mux.HandleFunc("DELETE /messages/delete-trailing/{messageId}", h.DeleteTrailing)
}

// DeleteLast handles DELETE /messages/delete-last-message/{chatId}.
func (h *MessagesHandler) DeleteLast(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	chatID, ok := parsePathID(w, r, "chatId", h.logger)
	if !ok {
		return
	}

	if err := h.service.DeleteLastMessage(r.Context(), chatID, userID); err != nil {
		h.logger.Error("Failed to delete last message",
			zap.String("chat_id", chatID.String()),
			zap.Error(err))
		if err := WriteError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"message": "Last message deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteTrailing handles DELETE /messages/delete-trailing/{messageId}.
// Removes the message and everything after it in its chat.
func (h *MessagesHandler) DeleteTrailing(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	messageID, ok := parsePathID(w, r, "messageId", h.logger)
	if !ok {
		return
	}

	if err := h.service.DeleteTrailing(r.Context(), messageID, userID); err != nil {
		h.logger.Error("Failed to delete trailing messages",
			zap.String("message_id", messageID.String()),
			zap.Error(err))
		if err := WriteError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"message": "Trailing messages deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parsePathID reads a UUID path value, writing a 400 on failure.
func parsePathID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", fmt.Sprintf("Invalid %s parameter", name)); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
