package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vitos/fx_trade_engine/internal/infrastructure/indicators"
	"github.com/vitos/fx_trade_engine/internal/infrastructure/logger"
	"github.com/vitos/fx_trade_engine/internal/infrastructure/storage"
	"github.com/vitos/fx_trade_engine/internal/infrastructure/venue"
	"github.com/vitos/fx_trade_engine/internal/usecase"
)

type Config struct {
	Venue struct {
		APIKey       string `yaml:"api_key"`
		APISecret    string `yaml:"api_secret"`
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"venue"`
	Strategy struct {
		Symbol       string  `yaml:"symbol"`
		Timeframe    string  `yaml:"timeframe"`
		MAPeriod     int     `yaml:"ma_period"`
		CCIPeriod    int     `yaml:"cci_period"`
		ATRPeriod    int     `yaml:"atr_period"`
		SignalMode   string  `yaml:"signal_mode"`
		CCILower     float64 `yaml:"cci_lower"`
		CCIUpper     float64 `yaml:"cci_upper"`
		RiskPercent  float64 `yaml:"risk_percent"`
		StopLossPips float64 `yaml:"stop_loss_pips"`
		MinLot       float64 `yaml:"min_lot"`
		MaxLot       float64 `yaml:"max_lot"`
	} `yaml:"strategy"`
	Exits struct {
		SLMultiplier  float64 `yaml:"sl_multiplier"`
		TPMultiplier  float64 `yaml:"tp_multiplier"`
		SLBufferMult  float64 `yaml:"sl_buffer_mult"`
		TPBufferMult  float64 `yaml:"tp_buffer_mult"`
		MaxBufferPips float64 `yaml:"max_buffer_pips"`
		HybridEnabled bool    `yaml:"hybrid_enabled"`
		ATRWeight     float64 `yaml:"atr_weight"`
		PivotWeight   float64 `yaml:"pivot_weight"`
	} `yaml:"exits"`
	Polling struct {
		EvaluateMs int `yaml:"evaluate_ms"`
	} `yaml:"polling"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
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
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "engine.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Venue + Gateway
	bridge := venue.NewFXBridgeAdapter(
		cfg.Venue.APIKey, cfg.Venue.APISecret,
		cfg.Venue.RESTEndpoint, cfg.Venue.WSEndpoint, log)
	gateway := usecase.NewBrokerGateway(bridge, log)

	// 5. Init Orchestrator
	indicatorSvc := indicators.NewService(bridge)
	strategyCfg := usecase.StrategyConfig{
		Symbol:       cfg.Strategy.Symbol,
		Timeframe:    cfg.Strategy.Timeframe,
		MAPeriod:     cfg.Strategy.MAPeriod,
		CCIPeriod:    cfg.Strategy.CCIPeriod,
		ATRPeriod:    cfg.Strategy.ATRPeriod,
		RiskPercent:  cfg.Strategy.RiskPercent,
		StopLossPips: cfg.Strategy.StopLossPips,
		MinLot:       cfg.Strategy.MinLot,
		MaxLot:       cfg.Strategy.MaxLot,
		Exits: usecase.ExitParams{
			SLMultiplier:  cfg.Exits.SLMultiplier,
			TPMultiplier:  cfg.Exits.TPMultiplier,
			SLBufferMult:  cfg.Exits.SLBufferMult,
			TPBufferMult:  cfg.Exits.TPBufferMult,
			MaxBufferPips: cfg.Exits.MaxBufferPips,
			HybridEnabled: cfg.Exits.HybridEnabled,
			ATRWeight:     cfg.Exits.ATRWeight,
			PivotWeight:   cfg.Exits.PivotWeight,
		},
		Signal: usecase.SignalConfig{
			Mode:     cfg.Strategy.SignalMode,
			CCILower: cfg.Strategy.CCILower,
			CCIUpper: cfg.Strategy.CCIUpper,
		},
	}
	orchestrator := usecase.NewTradeOrchestrator(gateway, indicatorSvc, store, strategyCfg, log)

	// 6. Connect
	if err := gateway.Connect(context.Background()); err != nil {
		log.Fatal("Failed to connect gateway", zap.Error(err))
	}
	if err := gateway.SubscribeSymbols([]string{cfg.Strategy.Symbol}); err != nil {
		log.Error("Failed to subscribe symbol", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 7. Evaluation Loop
	evaluateMs := cfg.Polling.EvaluateMs
	if evaluateMs == 0 {
		evaluateMs = 5000
	}
	go func() {
		ticker := time.NewTicker(time.Duration(evaluateMs) * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := orchestrator.EvaluateCycle(context.Background()); err != nil {
					log.Error("Evaluation cycle failed", zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()

	// 8. Metrics Endpoint
	metricsPort := cfg.Metrics.Port
	if metricsPort == 0 {
		metricsPort = 9090
	}
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), nil); err != nil {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	<-stop

	log.Info("Shutting down...")
	if err := gateway.Disconnect(); err != nil {
		log.Error("Disconnect failed", zap.Error(err))
	}
}
