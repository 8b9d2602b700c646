package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vikdev/delta_trigger_bot/internal/infrastructure/exchange"
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
	_ = godotenv.Load("userdata.env")

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("DELTA_API_KEY")
	fmt.Printf("Testing Delta Exchange interaction...\n")
	fmt.Printf("Endpoint: %s\n", cfg.Exchange.RESTEndpoint)
	if len(apiKey) >= 4 {
		fmt.Printf("API Key: %s...\n", apiKey[:4])
	}

	adapter := exchange.NewDeltaAdapter(apiKey, os.Getenv("DELTA_API_SECRET"),
		cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, zap.NewNop())
	ctx := context.Background()

	symbol := cfg.Exchange.Symbol
	if symbol == "" {
		symbol = "BTCUSD"
	}

	price, err := adapter.GetMarkPrice(ctx, symbol)
	if err != nil {
		fmt.Printf("❌ Failed to get price: %v\n", err)
	} else {
		fmt.Printf("✅ Current Price (%s): %f\n", symbol, price)
	}

	positions, err := adapter.GetPositions(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get positions: %v\n", err)
	} else {
		fmt.Printf("✅ Open positions: %d\n", len(positions))
		for _, p := range positions {
			fmt.Printf("- %s: Size=%f, Entry=%f, PnL=%f\n",
				p.Symbol, p.Size, p.EntryPrice, p.UnrealizedPnL)
		}
	}

	balances, err := adapter.GetWalletBalances(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get balances: %v\n", err)
	} else {
		for _, b := range balances {
			fmt.Printf("✅ Balance %s: %f\n", b.Asset, b.Available)
		}
	}
}
