package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aurelle-jewelry/api/internal/handlers"
	"github.com/aurelle-jewelry/api/internal/platform/auth"
	"github.com/aurelle-jewelry/api/internal/platform/config"
	pfirestore "github.com/aurelle-jewelry/api/internal/platform/firestore"
	"github.com/aurelle-jewelry/api/internal/platform/jobs"
	"github.com/aurelle-jewelry/api/internal/platform/observability"
	"github.com/aurelle-jewelry/api/internal/platform/requestctx"
	firestoreRepo "github.com/aurelle-jewelry/api/internal/repositories/firestore"
	"github.com/aurelle-jewelry/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var notifications services.NotificationSender
	var pubsubClient *pubsub.Client
	var notificationTopic *pubsub.Topic
	if cfg.Features.EnableNotifications {
		if cfg.PubSub.EmulatorHost != "" {
			_ = os.Setenv("PUBSUB_EMULATOR_HOST", cfg.PubSub.EmulatorHost)
		}
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		notificationTopic = pubsubClient.Topic(cfg.Notifications.TopicID)
		defer notificationTopic.Stop()

		notifications, err = jobs.NewPubSubNotificationPublisher(notificationTopic)
		if err != nil {
			logger.Fatal("failed to initialise notification publisher", zap.Error(err))
		}
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier)

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	couponRepo, err := firestoreRepo.NewCouponRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise coupon repository", zap.Error(err))
	}
	categoryRepo, err := firestoreRepo.NewCategoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise category repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}
	unitOfWork, err := firestoreRepo.NewUnitOfWork(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise unit of work", zap.Error(err))
	}

	eventLogger := serviceEventLogger()

	var couponService services.CouponService
	if cfg.Features.EnableCoupons {
		couponService, err = services.NewCouponService(services.CouponServiceDeps{
			Coupons:    couponRepo,
			UnitOfWork: unitOfWork,
			Logger:     eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise coupon service", zap.Error(err))
		}
	}

	orderStatusService, err := services.NewOrderStatusService(services.OrderStatusServiceDeps{
		Orders:        orderRepo,
		Products:      productRepo,
		UnitOfWork:    unitOfWork,
		Notifications: notifications,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order status service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:        orderRepo,
		Products:      productRepo,
		Counters:      counterRepo,
		Coupons:       couponService,
		UnitOfWork:    unitOfWork,
		Notifications: notifications,
		Pricing: services.CheckoutPricing{
			ShippingFlatRate: cfg.Checkout.ShippingFlatRate,
			FreeShippingOver: cfg.Checkout.FreeShippingOver,
		},
		Logger: eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	categoryService, err := services.NewCategoryService(services.CategoryServiceDeps{
		Categories: categoryRepo,
		Logger:     eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise category service", zap.Error(err))
	}

	couponHandlers := handlers.NewCouponHandlers(couponService)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService)
	orderHandlers := handlers.NewOrderHandlers(orderStatusService)
	categoryHandlers := handlers.NewCategoryHandlers(categoryService)

	healthHandlers := handlers.NewHealthHandlers(func(checkCtx context.Context) error {
		_, err := firestoreProvider.Client(checkCtx)
		return err
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firebase.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCouponRoutes(couponHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminMiddlewares(authenticator.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff)),
		handlers.WithAdminRoutes(func(admin chi.Router) {
			admin.Route("/orders", orderHandlers.AdminRoutes)
			admin.Route("/coupons", couponHandlers.AdminRoutes)
			admin.Route("/categories", categoryHandlers.AdminRoutes)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("aurelle api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// serviceEventLogger adapts the request-scoped zap logger to the plain event
// callback the services accept.
func serviceEventLogger() func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		requestctx.Logger(ctx).Info(event, zapFields...)
	}
}
