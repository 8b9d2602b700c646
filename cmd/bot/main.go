package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"github.com/vikdev/delta_trigger_bot/internal/infrastructure/exchange"
	"github.com/vikdev/delta_trigger_bot/internal/infrastructure/logger"
	"github.com/vikdev/delta_trigger_bot/internal/infrastructure/notify"
	"github.com/vikdev/delta_trigger_bot/internal/infrastructure/storage"
	"github.com/vikdev/delta_trigger_bot/internal/usecase"
	"github.com/vikdev/delta_trigger_bot/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange struct {
		Name         string `yaml:"name"`
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
		Symbol       string `yaml:"symbol"`
	} `yaml:"exchange"`
	Polling struct {
		EvaluatorMs int `yaml:"evaluator_ms"`
		MonitorMs   int `yaml:"monitor_ms"`
		PricePollMs int `yaml:"price_poll_ms"`
	} `yaml:"polling"`
	Telegram struct {
		StatusUpdates  bool `yaml:"status_updates"`
		StatusEveryMin int  `yaml:"status_every_min"`
	} `yaml:"telegram"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// Credentials live in the env file, never in config.yaml.
	_ = godotenv.Load("userdata.env")

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "bot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	adapter := exchange.NewDeltaAdapter(
		os.Getenv("DELTA_API_KEY"),
		os.Getenv("DELTA_API_SECRET"),
		cfg.Exchange.RESTEndpoint,
		cfg.Exchange.WSEndpoint,
		log,
	)

	var notifier domain.Notifier = notify.NopNotifier{}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		chatID, perr := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if perr != nil {
			log.Warn("Bad TELEGRAM_CHAT_ID, notifications disabled", zap.Error(perr))
		} else {
			tg, terr := notify.NewTelegramNotifier(token, chatID, log)
			if terr != nil {
				log.Warn("Telegram init failed, notifications disabled", zap.Error(terr))
			} else {
				notifier = tg
			}
		}
	}

	symbol := cfg.Exchange.Symbol
	if symbol == "" {
		symbol = "BTCUSD"
	}

	feed := usecase.NewPriceFeed()
	exitAction := usecase.NewExitAction(adapter, store, notifier, log)
	engine := usecase.NewExitEngine(feed, store, exitAction, nil, log)
	orderAction := usecase.NewOrderAction(adapter, store, notifier, log)
	orders := usecase.NewTriggerOrderService(store, store, orderAction, feed, notifier, nil, log)
	alerts := usecase.NewAlertBook(notifier, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Restore(ctx); err != nil {
		log.Error("Failed to restore exit levels", zap.Error(err))
	}
	if err := orders.Restore(ctx); err != nil {
		log.Error("Failed to restore trigger orders", zap.Error(err))
	}

	// Websocket is the primary price source; the feed updater's REST poll
	// covers the stream going quiet.
	adapter.OnPriceUpdate(func(sym string, price float64) {
		if sym == symbol {
			feed.Update(price)
		}
	})
	if err := adapter.ConnectWS(ctx, []string{symbol}); err != nil {
		log.Warn("Websocket connect failed, running on REST polling only", zap.Error(err))
	}

	updater := usecase.NewFeedUpdater(feed, adapter, symbol,
		time.Duration(cfg.Polling.PricePollMs)*time.Millisecond, log)
	updater.Start(ctx)

	evaluator := usecase.NewEvaluatorWorker(engine,
		time.Duration(cfg.Polling.EvaluatorMs)*time.Millisecond, log)
	evaluator.Start(ctx)

	monitor := usecase.NewMonitorWorker(orders, alerts, feed,
		time.Duration(cfg.Polling.MonitorMs)*time.Millisecond, log)
	monitor.Start(ctx)

	if cfg.Telegram.StatusUpdates {
		reporter := usecase.NewStatusReporter(feed, orders, engine, notifier,
			time.Duration(cfg.Telegram.StatusEveryMin)*time.Minute, log)
		reporter.Start(ctx)
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, engine, orders, alerts, feed, adapter, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
