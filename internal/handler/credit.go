package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

type CreditHandler struct {
	creditService *service.CreditCardService
	logger        *logrus.Logger
}

func NewCreditHandler(creditService *service.CreditCardService, logger *logrus.Logger) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
		logger:        logger,
	}
}

func (h *CreditHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.CreateSelf).Methods(http.MethodPost)
	router.HandleFunc("/users/{userID}", h.CreateForUser).Methods(http.MethodPost)
	router.HandleFunc("/accrue", h.Accrue).Methods(http.MethodPost)
	router.HandleFunc("/{ref}/limit", h.ChangeLimit).Methods(http.MethodPut)
	router.HandleFunc("/{ref}/interest-rate", h.SetInterestRate).Methods(http.MethodPut)
}

func (h *CreditHandler) CreateSelf(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	card, err := h.creditService.CreateSelf(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось выпустить кредитную карту")
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *CreditHandler) CreateForUser(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	userID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, h.logger, err, "Неверный идентификатор пользователя")
		return
	}
	var req model.CreateCreditCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать запрос на выпуск кредитной карты")
		return
	}

	card, err := h.creditService.CreateForUser(r.Context(), p, userID, req)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось выпустить кредитную карту")
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// ChangeLimit новый лимит больше текущего увеличивает его, меньше уменьшает
func (h *CreditHandler) ChangeLimit(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	ref, err := pathCardRef(r)
	if err != nil {
		writeError(w, h.logger, err, "Неверная ссылка на карту")
		return
	}
	var req model.LimitChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать запрос на изменение лимита")
		return
	}

	card, err := h.creditService.ChangeLimit(r.Context(), p, ref, req.NewLimit)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось изменить кредитный лимит")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CreditHandler) SetInterestRate(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	ref, err := pathCardRef(r)
	if err != nil {
		writeError(w, h.logger, err, "Неверная ссылка на карту")
		return
	}
	var req model.InterestRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать запрос на изменение ставки")
		return
	}

	card, err := h.creditService.SetInterestRate(r.Context(), p, ref, req.InterestRate)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось изменить процентную ставку")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Accrue ручной запуск ежемесячного начисления процентов
func (h *CreditHandler) Accrue(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		writeError(w, h.logger, fmt.Errorf("начисление процентов доступно только администратору: %w", model.ErrAccessDenied), "Отказ в начислении процентов")
		return
	}

	report, err := h.creditService.AccrueMonthlyInterest(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "Ошибка начисления процентов")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
