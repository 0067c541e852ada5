package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

// AuthHandler обрабатывает запросы аутентификации
type AuthHandler struct {
	authService *service.AuthService // Сервис аутентификации
	logger      *logrus.Logger       // Логгер
}

// NewAuthHandler создает новый AuthHandler
func NewAuthHandler(authService *service.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// RegisterRoutes регистрирует маршруты для аутентификации
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/signup", h.SignUp).Methods(http.MethodPost) // Маршрут для регистрации
	router.HandleFunc("/signin", h.SignIn).Methods(http.MethodPost) // Маршрут для входа
}

// SignUp обрабатывает запрос на регистрацию нового пользователя
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input model.SignUpInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать входные данные для регистрации")
		return
	}

	if err := input.Validate(); err != nil {
		h.logger.WithError(err).Warn("Ошибка валидации входных данных для регистрации")
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.SignUp(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось зарегистрировать пользователя")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt.Format(time.RFC3339),
	})
}

// SignIn обрабатывает запрос на вход пользователя
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var input model.SignInInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать входные данные для входа")
		return
	}

	token, err := h.authService.SignIn(r.Context(), input)
	if errors.Is(err, service.ErrInvalidCredentials) {
		h.logger.Warn("Не удалось войти в систему")
		writeMessage(w, http.StatusUnauthorized, "Неверные учетные данные")
		return
	}
	if err != nil {
		writeError(w, h.logger, err, "Не удалось войти в систему")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
