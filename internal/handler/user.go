package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

// UserHandler управление пользователями
type UserHandler struct {
	userService *service.UserService
	logger      *logrus.Logger
}

func NewUserHandler(userService *service.UserService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.List).Methods(http.MethodGet)
	router.HandleFunc("/{userID}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/{userID}/block", h.action(h.userService.Block, "Не удалось заблокировать пользователя")).Methods(http.MethodPost)
	router.HandleFunc("/{userID}/unblock", h.action(h.userService.Unblock, "Не удалось разблокировать пользователя")).Methods(http.MethodPost)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	page, err := h.userService.List(r.Context(), p, parsePage(r))
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить список пользователей")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, h.logger, err, "Неверный идентификатор пользователя")
		return
	}
	user, err := h.userService.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить пользователя")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type userAction func(ctx context.Context, p model.Principal, id uuid.UUID) (*model.User, error)

func (h *UserHandler) action(do userAction, failMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		id, err := pathUUID(r, "userID")
		if err != nil {
			writeError(w, h.logger, err, "Неверный идентификатор пользователя")
			return
		}
		user, err := do(r.Context(), p, id)
		if err != nil {
			writeError(w, h.logger, err, failMsg)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
