package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"edupulse/internal/config"
	"edupulse/internal/container"
	"edupulse/ui"
)

// analyze runs one batch analysis over the configured record source and
// prints the markdown report to stdout.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	records, err := c.Provider.Records(ctx)
	if err != nil {
		log.Fatalf("failed to load student records: %v", err)
	}

	result, err := c.Session.Run(ctx, records, cfg.Engine)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	fmt.Print(ui.RenderReportMarkdown(result))
}
