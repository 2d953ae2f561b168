// serial-counter-set overrides the serial counter's next value. Operator
// escape hatch for importing stock with pre-assigned serials; it bypasses the
// reservation lock, so run it only while the API is quiet.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/serial-counter-set -next 1500
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/models"
)

func main() {
	next := flag.Int64("next", 0, "next serial value to hand out (required, >= 1)")
	flag.Parse()

	if *next < 1 {
		fmt.Fprintln(os.Stderr, "usage: serial-counter-set -next <value >= 1>")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	current, err := models.GetNextSerial(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read counter: %v\n", err)
		os.Exit(1)
	}

	if err := models.SetSerialCounter(ctx, *next); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set counter: %v\n", err)
		os.Exit(1)
	}

	prefix := config.GetSerialPrefix()
	fmt.Printf("serial counter: %s -> %s\n",
		models.FormatSerial(prefix, current), models.FormatSerial(prefix, *next))
}
