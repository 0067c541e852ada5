package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

// CardHandler просмотр карт, смена статуса и выпуск дебетовых карт
type CardHandler struct {
	cardService *service.CardService
	logger      *logrus.Logger
}

func NewCardHandler(cardService *service.CardService, logger *logrus.Logger) *CardHandler {
	return &CardHandler{cardService: cardService, logger: logger}
}

// RegisterRoutes маршруты /api/cards
func (h *CardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.ListMine).Methods(http.MethodGet)
	router.HandleFunc("/all", h.ListAll).Methods(http.MethodGet)
	router.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	router.HandleFunc("/block-requests", h.BlockRequests).Methods(http.MethodGet)
	router.HandleFunc("/{ref}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/{ref}", h.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/{ref}/block", h.statusAction(h.cardService.Block, "Не удалось заблокировать карту")).Methods(http.MethodPost)
	router.HandleFunc("/{ref}/unblock", h.statusAction(h.cardService.Unblock, "Не удалось разблокировать карту")).Methods(http.MethodPost)
	router.HandleFunc("/{ref}/request-block", h.statusAction(h.cardService.RequestBlock, "Не удалось запросить блокировку карты")).Methods(http.MethodPost)
	router.HandleFunc("/{ref}/close", h.statusAction(h.cardService.Close, "Не удалось закрыть карту")).Methods(http.MethodPost)
}

// RegisterDebitRoutes маршруты /api/debit-cards
func (h *CardHandler) RegisterDebitRoutes(router *mux.Router) {
	router.HandleFunc("", h.CreateDebit).Methods(http.MethodPost)
	router.HandleFunc("/users/{userID}", h.CreateDebitForUser).Methods(http.MethodPost)
}

func (h *CardHandler) CreateDebit(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	card, err := h.cardService.CreateDebit(r.Context(), p, p.UserID)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось выпустить дебетовую карту")
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *CardHandler) CreateDebitForUser(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	userID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, h.logger, err, "Неверный идентификатор пользователя")
		return
	}
	card, err := h.cardService.CreateDebit(r.Context(), p, userID)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось выпустить дебетовую карту")
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *CardHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	cards, err := h.cardService.ListByUser(r.Context(), p, p.UserID)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить карты пользователя")
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	page, err := h.cardService.ListAll(r.Context(), p, parsePage(r))
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить список карт")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CardHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	cards, err := h.cardService.Search(r.Context(), p, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err, "Ошибка поиска карт")
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) BlockRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	page, err := h.cardService.BlockRequests(r.Context(), p, parsePage(r))
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить запросы на блокировку")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	ref, err := pathCardRef(r)
	if err != nil {
		writeError(w, h.logger, err, "Неверная ссылка на карту")
		return
	}
	card, err := h.cardService.Get(r.Context(), p, ref)
	if err != nil {
		writeError(w, h.logger, err, "Не удалось получить карту")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	ref, err := pathCardRef(r)
	if err != nil {
		writeError(w, h.logger, err, "Неверная ссылка на карту")
		return
	}
	if err := h.cardService.Delete(r.Context(), p, ref); err != nil {
		writeError(w, h.logger, err, "Не удалось удалить карту")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusChange func(ctx context.Context, p model.Principal, ref model.CardRef) (*model.CardResponse, error)

// statusAction общий обработчик смены статуса карты
func (h *CardHandler) statusAction(change statusChange, failMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		ref, err := pathCardRef(r)
		if err != nil {
			writeError(w, h.logger, err, "Неверная ссылка на карту")
			return
		}
		card, err := change(r.Context(), p, ref)
		if err != nil {
			writeError(w, h.logger, err, failMsg)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}
