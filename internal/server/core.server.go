// Package server wires the service dependencies and owns the HTTP
// listener lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"recharge-service/internal/config"
	"recharge-service/internal/handler/rest"
	"recharge-service/internal/pub"
	"recharge-service/internal/repository"
	"recharge-service/internal/usecase"
	"recharge-service/pkg/cache"
	"recharge-service/pkg/receipt"
	"recharge-service/pkg/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	db         *pgxpool.Pool
	cache      *cache.Service
	publisher  *pub.EventPublisher
	logger     *zap.Logger
}

// New builds the full dependency graph from configuration. Redis and kafka
// are optional at runtime (the sale path degrades to DB-only), but a
// failure to reach them at startup is surfaced loudly.
func New(cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	db, err := config.ConnectDB()
	if err != nil {
		return nil, err
	}

	signer, err := receipt.NewSigner(cfg.ReceiptHMACKey)
	if err != nil {
		return nil, err
	}

	var (
		cacheSvc  *cache.Service
		publisher *pub.EventPublisher
	)
	cacheSvc, err = cache.New(cfg.RedisAddr, cfg.RedisPass, 0, logger)
	if err != nil {
		logger.Warn("redis unavailable, receipt caching and events disabled", zap.Error(err))
		cacheSvc = nil
	} else {
		publisher = pub.NewEventPublisher(cacheSvc.Client(), cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
	}

	txRepo := repository.NewTransactionRepo(db)
	balanceRepo := repository.NewBalanceRepo(db)
	catalogRepo := repository.NewCatalogRepo(db)
	agentRepo := repository.NewAgentRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	ruleRepo := repository.NewCommissionRuleRepo(db)

	var receiptCache usecase.ReceiptCache
	if cacheSvc != nil {
		receiptCache = cacheSvc
	}
	var events usecase.EventSink
	if publisher != nil {
		events = publisher
	}

	commissionUC := usecase.NewCommissionUsecase(ruleRepo, auditRepo, events, db, logger)
	balanceUC := usecase.NewBalanceUsecase(balanceRepo, auditRepo, events, db, logger)
	agentUC := usecase.NewAgentUsecase(agentRepo, balanceRepo, auditRepo, events, db, logger)
	catalogUC := usecase.NewCatalogUsecase(catalogRepo)
	auditUC := usecase.NewAuditUsecase(auditRepo)

	saleUC := usecase.NewSaleUsecase(
		txRepo, balanceRepo, catalogRepo, agentRepo, auditRepo,
		commissionUC,
		signer, token.NewGenerator(),
		receiptCache, events,
		usecase.SalePolicy{
			ReceiptTTL:     cfg.ReceiptTTL,
			ReissueLimit:   cfg.ReissueLimit,
			ReceiptBaseURL: cfg.ReceiptBaseURL,
			PrinterProfile: cfg.PrinterProfile,
		},
		db, logger,
	)

	router := rest.NewRouter(rest.Handlers{
		Sale:    rest.NewSaleHandler(saleUC, balanceUC),
		Receipt: rest.NewReceiptHandler(saleUC),
		Admin:   rest.NewAdminHandler(agentUC, balanceUC, commissionUC, saleUC, auditUC),
		Catalog: rest.NewCatalogHandler(catalogUC),
		Agents:  agentUC,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:        db,
		cache:     cacheSvc,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the pools.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.publisher != nil {
		if cerr := s.publisher.Close(); cerr != nil {
			s.logger.Warn("failed to close event publisher", zap.Error(cerr))
		}
	}
	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.logger.Warn("failed to close redis client", zap.Error(cerr))
		}
	}
	s.db.Close()

	return err
}
