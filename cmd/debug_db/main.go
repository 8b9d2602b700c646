package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vikdev/delta_trigger_bot/internal/infrastructure/storage"
)

func main() {
	dbPath := "bot.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	levels, ok, err := store.LoadExitLevels(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to load exit levels: %v\n", err)
	} else if !ok {
		fmt.Println("No exit levels stored")
	} else {
		if levels.Above.Active() {
			fmt.Printf("Exit Above: %f (%s)\n", *levels.Above.Price, levels.Above.Kind)
		}
		if levels.Below.Active() {
			fmt.Printf("Exit Below: %f (%s)\n", *levels.Below.Price, levels.Below.Kind)
		}
		if !levels.Above.Active() && !levels.Below.Active() {
			fmt.Println("Exit levels row present, both slots inactive")
		}
	}

	orders, err := store.ListPendingTriggerOrders(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to list trigger orders: %v\n", err)
	} else {
		fmt.Printf("Found %d pending trigger orders:\n", len(orders))
		for _, o := range orders {
			fmt.Printf("- %s: %s %d %s @ %s %f\n",
				o.ID, o.Side, o.Size, o.Symbol, o.Condition, o.TriggerPrice)
		}
	}

	trades, err := store.ListTrades(ctx, 20)
	if err != nil {
		fmt.Printf("❌ Failed to list trades: %v\n", err)
	} else {
		fmt.Printf("Last %d trades:\n", len(trades))
		for _, t := range trades {
			fmt.Printf("- [%s] %s %s %d @ %f (%s)\n",
				t.CreatedAt.Format("2006-01-02 15:04:05"), t.OrderType, t.Side, t.Size, t.Price, t.OrderID)
		}
	}
}
