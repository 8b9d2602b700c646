package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"github.com/vikdev/delta_trigger_bot/internal/usecase"
	"go.uber.org/zap"
)

// Server is the JSON operator surface. All trading state is owned by the
// usecase layer; handlers only translate HTTP to service calls.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	engine    *usecase.ExitEngine
	orders    *usecase.TriggerOrderService
	alerts    *usecase.AlertBook
	feed      *usecase.PriceFeed
	gateway   domain.Gateway
	tradeRepo domain.TradeRepository
	logger    *zap.Logger
}

func NewServer(
	port int,
	engine *usecase.ExitEngine,
	orders *usecase.TriggerOrderService,
	alerts *usecase.AlertBook,
	feed *usecase.PriceFeed,
	gateway domain.Gateway,
	tradeRepo domain.TradeRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		engine:    engine,
		orders:    orders,
		alerts:    alerts,
		feed:      feed,
		gateway:   gateway,
		tradeRepo: tradeRepo,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Exit levels
	s.router.HandleFunc("GET /api/exit-levels", s.handleGetExitLevels)
	s.router.HandleFunc("POST /api/exit-levels", s.handleSetExitLevels)
	s.router.HandleFunc("POST /api/exit-levels/clear", s.handleClearExitLevels)

	// Countdown
	s.router.HandleFunc("GET /api/countdown", s.handleCountdownStatus)
	s.router.HandleFunc("POST /api/countdown/cancel", s.handleCancelCountdown)

	// Trigger orders
	s.router.HandleFunc("GET /api/trigger-orders", s.handleListTriggerOrders)
	s.router.HandleFunc("POST /api/trigger-orders", s.handleAddTriggerOrder)
	s.router.HandleFunc("POST /api/trigger-orders/{id}/cancel", s.handleCancelTriggerOrder)

	// Price alerts
	s.router.HandleFunc("GET /api/alerts", s.handleListAlerts)
	s.router.HandleFunc("POST /api/alerts", s.handleAddAlert)
	s.router.HandleFunc("DELETE /api/alerts/{id}", s.handleDeleteAlert)

	// Account state and history
	s.router.HandleFunc("GET /api/state", s.handleState)
	s.router.HandleFunc("GET /api/trades", s.handleListTrades)

	// Health and metrics
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
