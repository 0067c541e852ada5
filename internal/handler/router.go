package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/service"
)

// Handlers все обработчики API
type Handlers struct {
	Auth         *AuthHandler
	Cards        *CardHandler
	Credit       *CreditHandler
	Transactions *TransactionHandler
	Notification *NotificationHandler
	Analytics    *AnalyticsHandler
	Users        *UserHandler
}

// NewRouter собирает маршруты: /auth публичные, /api требует JWT токен
func NewRouter(authService *service.AuthService, h Handlers, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	publicRouter := router.PathPrefix("/auth").Subrouter()
	h.Auth.RegisterRoutes(publicRouter)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(AuthMiddleware(authService, logger))

	h.Cards.RegisterRoutes(apiRouter.PathPrefix("/cards").Subrouter())
	h.Cards.RegisterDebitRoutes(apiRouter.PathPrefix("/debit-cards").Subrouter())
	h.Credit.RegisterRoutes(apiRouter.PathPrefix("/credit-cards").Subrouter())
	h.Transactions.RegisterRoutes(apiRouter.PathPrefix("/transactions").Subrouter())
	h.Notification.RegisterRoutes(apiRouter.PathPrefix("/notifications").Subrouter())
	h.Analytics.RegisterRoutes(apiRouter.PathPrefix("/analytics").Subrouter())
	h.Users.RegisterRoutes(apiRouter.PathPrefix("/users").Subrouter())

	return router
}
