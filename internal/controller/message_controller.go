// internal/controller/message_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/repository"
	"github.com/telinga/telinga-backend/internal/service"
)

// MessageController exposes scheduled-message status queries and cancellation.
type MessageController struct {
	ScheduledRepo    repository.ScheduledMessageRepositoryInterface
	SchedulerService *service.SchedulerService
	Logger           *zap.Logger
}

func (c *MessageController) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	msg, err := c.ScheduledRepo.GetByID(id)
	if err != nil {
		c.Logger.Error("message lookup failed", zap.Int("id", id), zap.Error(err))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if msg == nil {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(msg)
}

// CancelMessage withdraws a pending message. Once dispatch has claimed the
// message cancellation is refused with 409.
func (c *MessageController) CancelMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	cancelled, err := c.SchedulerService.Cancel(id)
	if err != nil {
		c.Logger.Error("cancel failed", zap.Int("id", id), zap.Error(err))
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	if !cancelled {
		http.Error(w, "message is no longer pending", http.StatusConflict)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     id,
		"status": "cancelled",
	})
}
