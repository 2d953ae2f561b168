// reconcile compares local available inventory against the commerce
// platform's variants and prints every mismatch. Intended for a nightly cron
// or manual operator runs.
//
// Usage (from backend directory):
//
//	DB_USER=... SHOPIFY_STORE_URL=... go run ./cmd/reconcile
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/shopsync"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	client := shopsync.NewClient()
	if !client.Configured() {
		fmt.Fprintln(os.Stderr, "commerce platform not configured. Set SHOPIFY_STORE_URL and credentials.")
		os.Exit(1)
	}

	mismatches, err := client.ReconcileInventory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	if len(mismatches) == 0 {
		fmt.Println("inventory matches the platform")
		return
	}

	out, _ := json.MarshalIndent(mismatches, "", "  ")
	fmt.Println(string(out))
	os.Exit(3)
}
