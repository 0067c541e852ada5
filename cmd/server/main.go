package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bank-cards-api/internal/config"
	"bank-cards-api/internal/events"
	"bank-cards-api/internal/handler"
	"bank-cards-api/internal/model"
	"bank-cards-api/internal/repository"
	"bank-cards-api/internal/repository/memory"
	"bank-cards-api/internal/service"
)

// eventBus очередь событий: публикация из сервиса операций и чтение обработчиком уведомлений
type eventBus interface {
	service.Publisher
	Run(ctx context.Context, h events.Handler) error
}

type storage struct {
	cards         service.CardStore
	transactions  service.TransactionStore
	ledger        service.LedgerStore
	users         service.UserStore
	notifications service.NotificationStore
	bus           eventBus
	close         func()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Загрузка конфигурации приложения
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Ошибка инициализации хранилища: %v", err)
	}
	defer store.close()

	// Инициализация сервисов
	logger.Info("Инициализация сервисов...")
	emailSender := service.NewEmailSender(service.SMTPConfig{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		User:               cfg.SMTPUser,
		Password:           cfg.SMTPPass,
		Enabled:            cfg.EmailSenderEnabled,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, logger)

	var keyRate service.KeyRateSource
	if cfg.CreditUseKeyRate {
		keyRate = service.NewCBRClient(cfg.CBREndpoint, logger)
	}

	lifecycle := service.NewLifecycle(store.cards, logger)
	authService := service.NewAuthService(store.users, cfg.JWTSecret, cfg.TokenExpiry, logger)
	cardService := service.NewCardService(store.cards, store.ledger, lifecycle, cfg.CardValidityYears, logger)
	creditService := service.NewCreditCardService(store.cards, store.ledger, lifecycle, keyRate, service.CreditSettings{
		DefaultLimit:       cfg.CreditDefaultLimit,
		DefaultRate:        cfg.CreditDefaultRate,
		RateMargin:         cfg.CreditRateMargin,
		MinimumPaymentRate: service.DefaultCreditSettings().MinimumPaymentRate,
		GracePeriodDays:    service.DefaultCreditSettings().GracePeriodDays,
		ValidityYears:      cfg.CardValidityYears,
		AccrualPageSize:    cfg.AccrualPageSize,
	}, logger)
	transactionService := service.NewTransactionService(
		store.cards,
		store.transactions,
		store.ledger,
		store.bus,
		cfg.PublishTimeout,
		logger,
	)
	projector := service.NewNotificationProjector(store.notifications, store.cards, store.users, emailSender, logger)
	notificationService := service.NewNotificationService(store.notifications, logger)
	analyticService := service.NewAnalyticService(store.cards, store.transactions, logger)
	userService := service.NewUserService(store.users, logger)

	if err := authService.EnsureAdmin(ctx, model.SignUpInput{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}); err != nil {
		logger.Fatalf("Ошибка создания администратора: %v", err)
	}

	// Инициализация HTTP обработчиков
	logger.Info("Инициализация обработчиков API...")
	router := handler.NewRouter(authService, handler.Handlers{
		Auth:         handler.NewAuthHandler(authService, logger),
		Cards:        handler.NewCardHandler(cardService, logger),
		Credit:       handler.NewCreditHandler(creditService, logger),
		Transactions: handler.NewTransactionHandler(transactionService, logger),
		Notification: handler.NewNotificationHandler(notificationService, logger),
		Analytics:    handler.NewAnalyticsHandler(analyticService, logger),
		Users:        handler.NewUserHandler(userService, logger),
	}, logger)

	// Настройка планировщика ежемесячного начисления процентов
	logger.WithField("schedule", cfg.AccrualSchedule).Info("Настройка планировщика начисления процентов...")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))))
	_, err = c.AddFunc(cfg.AccrualSchedule, func() {
		logger.Info("Запуск начисления процентов по кредитным картам")
		report, err := creditService.AccrueMonthlyInterest(ctx)
		if err != nil {
			logger.WithError(err).Error("Ошибка начисления процентов")
			return
		}
		logger.WithFields(logrus.Fields{
			"processed": report.Processed,
			"accrued":   report.Accrued,
			"failed":    report.Failed,
			"interest":  report.Interest.String(),
		}).Info("Начисление процентов завершено")
	})
	if err != nil {
		logger.Fatalf("Ошибка настройки планировщика: %v", err)
	}
	c.Start()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Запуск сервера на %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return store.bus.Run(gctx, projector)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Завершение работы сервера...")

		<-c.Stop().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Сервер остановлен с ошибкой")
		os.Exit(1)
	}
	logger.Info("Сервер успешно остановлен")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*storage, error) {
	eventOpts := events.Options{
		PollInterval: cfg.EventPollInterval,
		BatchSize:    cfg.EventBatchSize,
		MaxAttempts:  cfg.EventMaxAttempts,
	}

	if cfg.Storage == config.StorageMemory {
		logger.Warn("Используется хранилище в памяти, данные не сохраняются между запусками")
		db := memory.NewDB()
		return &storage{
			cards:         memory.NewCardRepository(db),
			transactions:  memory.NewTransactionRepository(db),
			ledger:        memory.NewLedgerRepository(db, cfg.LockTimeout),
			users:         memory.NewUserRepository(db),
			notifications: memory.NewNotificationRepository(db),
			bus:           events.NewChannelBus(0, eventOpts, logger),
			close:         func() {},
		}, nil
	}

	// Подключение к PostgreSQL
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := repository.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	pool, err := events.Connect(ctx, cfg.DSN(), 5)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Инициализация репозиториев...")
	return &storage{
		cards:         repository.NewCardRepository(db, logger),
		transactions:  repository.NewTransactionRepository(db, logger),
		ledger:        repository.NewLedgerRepository(db, cfg.LockTimeout, logger),
		users:         repository.NewUserRepository(db, logger),
		notifications: repository.NewNotificationRepository(db, logger),
		bus:           events.NewPostgresQueue(pool, eventOpts, logger),
		close: func() {
			pool.Close()
			db.Close()
		},
	}, nil
}
