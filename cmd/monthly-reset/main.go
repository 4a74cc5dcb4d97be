package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/utils"
)

// Runs the monthly reset once, for external schedulers. Exits 1 when accounts are left unreset.
func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "Give up after this long")
	flag.Parse()

	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)

	if err := run(cfg, timeout, os.Stdout); err != nil {
		log.Error().Err(err).Msg("❌ Monthly reset failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, timeout time.Duration, out io.Writer) error {
	store, err := credits.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := credits.NewModule(store, cfg).ResetJob.Run(ctx)
	if report != nil {
		raw, _ := json.MarshalIndent(report, "", "  ")
		out.Write(append(raw, '\n'))
	}
	if err != nil {
		return fmt.Errorf("monthly reset aborted: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("monthly reset left %d accounts unreset", report.Failed)
	}
	return nil
}
