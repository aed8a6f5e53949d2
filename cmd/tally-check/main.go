// Command tally-check probes the Tally gateway: connectivity, active
// company and master counts. Useful before pointing the server at a
// new gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/tally"
)

func main() {
	url := flag.String("url", "http://localhost:9000", "Tally gateway URL")
	company := flag.String("company", "", "company to query (defaults to the active one)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := tally.NewClient(tally.Config{
		URL:     *url,
		Company: *company,
		Timeout: *timeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		logger.Fatal("Gateway unreachable", zap.String("url", *url), zap.Error(err))
	}
	fmt.Printf("Gateway reachable at %s\n", *url)

	active, err := client.ActiveCompany(ctx)
	if err != nil {
		logger.Fatal("Failed to query active company", zap.Error(err))
	}
	fmt.Printf("Active company: %s\n", active)

	ledgers, err := client.Ledgers(ctx)
	if err != nil {
		logger.Fatal("Failed to list ledgers", zap.Error(err))
	}
	stockItems, err := client.StockItems(ctx)
	if err != nil {
		logger.Fatal("Failed to list stock items", zap.Error(err))
	}
	units, err := client.Units(ctx)
	if err != nil {
		logger.Fatal("Failed to list units", zap.Error(err))
	}

	fmt.Printf("Masters: %d ledgers, %d stock items, %d units\n",
		len(ledgers), len(stockItems), len(units))
}
