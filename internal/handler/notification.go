package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *logrus.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, logger *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, logger: logger}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.List).Methods(http.MethodGet)
	router.HandleFunc("/unread-count", h.UnreadCount).Methods(http.MethodGet)
	router.HandleFunc("/{id}/read", h.MarkRead).Methods(http.MethodPost)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, err := h.notificationService.List(r.Context(), p, unreadOnly)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить уведомления")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	count, err := h.notificationService.UnreadCount(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось посчитать непрочитанные уведомления")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Неверный идентификатор уведомления")
		return
	}
	if err := h.notificationService.MarkRead(r.Context(), p, id); err != nil {
		writeError(w, h.logger, err, "Не удалось отметить уведомление")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
