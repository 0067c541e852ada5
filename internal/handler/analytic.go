package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

type AnalyticsHandler struct {
	analyticService *service.AnalyticService
	logger          *logrus.Logger
}

func NewAnalyticsHandler(analyticService *service.AnalyticService, logger *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticService: analyticService,
		logger:          logger,
	}
}

func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stats", h.GetFinancialStats).Methods(http.MethodGet)
	router.HandleFunc("/credit-load", h.GetCreditLoad).Methods(http.MethodGet)
}

// GetFinancialStats возвращает статистику по поступлениям и списаниям
func (h *AnalyticsHandler) GetFinancialStats(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	userID, ok := h.targetUser(w, r, p)
	if !ok {
		return
	}

	startDate, endDate, err := h.parseDateRange(r)
	if err != nil {
		h.logger.WithError(err).Warn("Неверные параметры даты")
		writeMessage(w, http.StatusBadRequest, "Неверный формат даты (используйте YYYY-MM-DD)")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"start_date": startDate,
		"end_date":   endDate,
	}).Info("Запрос финансовой статистики")

	stats, err := h.analyticService.GetFinancialStats(r.Context(), p, userID, startDate, endDate)
	if err != nil {
		writeError(w, h.logger, err, "Ошибка получения финансовой статистики")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetCreditLoad возвращает аналитику кредитной нагрузки
func (h *AnalyticsHandler) GetCreditLoad(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	userID, ok := h.targetUser(w, r, p)
	if !ok {
		return
	}

	load, err := h.analyticService.GetCreditLoad(r.Context(), p, userID)
	if err != nil {
		writeError(w, h.logger, err, "Ошибка получения кредитной нагрузки")
		return
	}
	writeJSON(w, http.StatusOK, load)
}

// targetUser пользователь из параметра user_id, по умолчанию текущий
func (h *AnalyticsHandler) targetUser(w http.ResponseWriter, r *http.Request, p model.Principal) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return p.UserID, true
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.WithField("user_id", raw).Warn("Неверный формат ID пользователя")
		writeMessage(w, http.StatusBadRequest, "Неверный ID пользователя")
		return uuid.Nil, false
	}
	return userID, true
}

// parseDateRange парсит даты из параметров запроса
func (h *AnalyticsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	y, m, d := time.Now().UTC().Date()
	endDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	startDate := endDate.AddDate(0, -1, 0) // по умолчанию последний месяц

	if startParam := r.URL.Query().Get("start"); startParam != "" {
		t, err := time.Parse("2006-01-02", startParam)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		startDate = t
	}

	if endParam := r.URL.Query().Get("end"); endParam != "" {
		t, err := time.Parse("2006-01-02", endParam)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		endDate = t
	}

	// Проверяем что startDate <= endDate
	if startDate.After(endDate) {
		return endDate, startDate, nil
	}
	return startDate, endDate, nil
}
