package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

// TransactionHandler операции по картам и история операций
type TransactionHandler struct {
	transactionService *service.TransactionService // Сервис операций
	logger             *logrus.Logger              // Логгер
}

// NewTransactionHandler создает новый TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService, logger *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// RegisterRoutes регистрирует маршруты /api/transactions
func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/deposit", h.Deposit).Methods(http.MethodPost)   // Пополнение карты
	router.HandleFunc("/withdraw", h.Withdraw).Methods(http.MethodPost) // Списание с карты
	router.HandleFunc("/transfer", h.Transfer).Methods(http.MethodPost) // Перевод между картами
	router.HandleFunc("", h.ListAll).Methods(http.MethodGet)
	router.HandleFunc("/cards/{number}", h.ByCard).Methods(http.MethodGet)
	router.HandleFunc("/users/{userID}", h.ByUser).Methods(http.MethodGet)
	router.HandleFunc("/{id}", h.ByID).Methods(http.MethodGet)
}

// Deposit обрабатывает запрос на пополнение карты
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req model.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать запрос на пополнение")
		return
	}
	ref, err := parseCardRef(req.Card)
	if err != nil {
		writeError(w, h.logger, err, "Неверная ссылка на карту")
		return
	}

	card, err := h.transactionService.Deposit(r.Context(), p, ref, req.Amount, req.Comment)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось пополнить карту")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Withdraw обрабатывает запрос на списание средств
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req model.WithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать запрос на списание")
		return
	}
	ref, err := parseCardRef(req.Card)
	if err != nil {
		writeError(w, h.logger, err, "Неверная ссылка на карту")
		return
	}

	card, err := h.transactionService.Withdraw(r.Context(), p, ref, req.Amount, req.Comment)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось списать средства")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Transfer обрабатывает запрос на перевод средств
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req model.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Не удалось декодировать запрос на перевод")
		return
	}
	from, err := parseCardRef(req.FromCard)
	if err != nil {
		writeError(w, h.logger, err, "Неверная карта отправителя")
		return
	}
	to, err := parseCardRef(req.ToCard)
	if err != nil {
		writeError(w, h.logger, err, "Неверная карта получателя")
		return
	}

	card, err := h.transactionService.Transfer(r.Context(), p, from, to, req.Amount, req.Comment)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось выполнить перевод")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *TransactionHandler) ByID(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Неверный идентификатор транзакции")
		return
	}
	t, err := h.transactionService.ByID(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить транзакцию")
		return
	}
	writeJSON(w, http.StatusOK, t.ToResponse())
}

func (h *TransactionHandler) ByCard(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	number := mux.Vars(r)["number"]
	if len(number) != 16 || !isDigits(number) {
		writeError(w, h.logger, fmt.Errorf("номер карты должен состоять из 16 цифр: %w", model.ErrInvalidOperation), "Неверный номер карты")
		return
	}
	items, err := h.transactionService.ByCard(r.Context(), p, number)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить операции по карте")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(items))
}

func (h *TransactionHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	userID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, h.logger, err, "Неверный идентификатор пользователя")
		return
	}
	items, err := h.transactionService.ByUser(r.Context(), p, userID)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить операции пользователя")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(items))
}

func (h *TransactionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	page, err := h.transactionService.All(r.Context(), p, parsePage(r))
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить список операций")
		return
	}
	writeJSON(w, http.StatusOK, model.Page[model.TransactionResponse]{
		Items: toTransactionResponses(page.Items),
		Page:  page.Page,
		Size:  page.Size,
		Total: page.Total,
	})
}

func toTransactionResponses(items []model.Transaction) []model.TransactionResponse {
	result := make([]model.TransactionResponse, 0, len(items))
	for i := range items {
		result = append(result, items[i].ToResponse())
	}
	return result
}
