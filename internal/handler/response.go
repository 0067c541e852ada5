package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

var kindStatus = map[model.ErrorKind]int{
	model.KindNotFound:            http.StatusNotFound,
	model.KindInvalidAmount:       http.StatusBadRequest,
	model.KindInvalidOperation:    http.StatusBadRequest,
	model.KindInsufficientFunds:   http.StatusConflict,
	model.KindAccountBlocked:      http.StatusConflict,
	model.KindConstraintViolation: http.StatusConflict,
	model.KindAccessDenied:        http.StatusForbidden,
	model.KindLockTimeout:         http.StatusServiceUnavailable,
}

type errorResponse struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError код ответа выбирается по виду ошибки, внутренние ошибки не раскрываются клиенту
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error, msg string) {
	kind := model.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		logger.WithError(err).Error(msg)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Внутренняя ошибка сервера", Kind: model.KindInternal})
		return
	}

	logger.WithError(err).WithField("kind", kind).Warn(msg)
	if kind.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("неверный формат запроса: %w", model.ErrInvalidOperation)
	}
	return nil
}

// parseCardRef принимает UUID карты или её номер из 16 цифр
func parseCardRef(raw string) (model.CardRef, error) {
	if id, err := uuid.Parse(raw); err == nil {
		return model.RefByID(id), nil
	}
	if len(raw) == 16 && isDigits(raw) {
		return model.RefByNumber(raw), nil
	}
	return model.CardRef{}, fmt.Errorf("ожидается идентификатор или номер карты: %w", model.ErrInvalidOperation)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("неверный идентификатор %s: %w", name, model.ErrInvalidOperation)
	}
	return id, nil
}

func pathCardRef(r *http.Request) (model.CardRef, error) {
	return parseCardRef(mux.Vars(r)["ref"])
}

// parsePage читает page и size из строки запроса
func parsePage(r *http.Request) model.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return model.PageRequest{Page: page, Size: size}.Normalize()
}

// mustPrincipal отвечает 401, если запрос прошёл мимо AuthMiddleware
func mustPrincipal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := principalFrom(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Неавторизованный доступ")
	}
	return p, ok
}
