package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"centropos/backend/internal/config"
	"centropos/backend/internal/editor"
	"centropos/backend/internal/inventory"
	"centropos/backend/internal/logging"
	"centropos/backend/internal/oracleclient"
	"centropos/backend/internal/store"
	"centropos/backend/internal/store/memory"
	"centropos/backend/internal/tui"
)

func main() {
	demo := flag.Bool("demo", false, "use the built-in demo catalog instead of ORACLE_URL")
	flag.Parse()

	cfg := config.Load()
	logger := zap.NewNop()
	if cfg.LogFile != "" {
		built, err := logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
			os.Exit(1)
		}
		logger = built
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *demo, logger); err != nil {
		fmt.Fprintf(os.Stderr, "cartgrid: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, demo bool, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle, err := oracleFor(cfg, demo, logger)
	if err != nil {
		return err
	}
	model := tui.New(ctx, memory.NewCartLines(), oracle, tui.Options{
		Config: editorConfig(cfg),
		Logger: logger,
	})
	defer model.Close()

	logger.Info("cart grid started", zap.Bool("demo", demo), zap.String("oracle", cfg.OracleURL))
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// oracleFor returns the inventory source behind the editor, wrapped in a
// resolver so a slow or unreachable back office degrades to last-known data.
func oracleFor(cfg config.Config, demo bool, logger *zap.Logger) (store.InventoryOracle, error) {
	var upstream store.InventoryOracle
	if demo {
		seeded, err := memory.NewSeeded(logger)
		if err != nil {
			return nil, err
		}
		upstream = seeded
	} else {
		upstream = oracleclient.New(cfg.OracleURL, oracleclient.Options{
			Username:   cfg.OracleUsername,
			Password:   cfg.OraclePassword,
			HTTPClient: &http.Client{Timeout: 2 * cfg.OracleTimeout()},
			Logger:     logger,
		})
	}
	return inventory.NewResolver(upstream, inventory.Options{
		Timeout: cfg.OracleTimeout(),
		TTL:     cfg.InventoryCacheTTL(),
		Logger:  logger,
	}), nil
}

func editorConfig(cfg config.Config) editor.Config {
	return editor.Config{
		AllowLabelEdit:       cfg.AllowLabelEdit,
		LiveUpdate:           cfg.LiveUpdate,
		AllocationExactSum:   cfg.AllocationExactSum,
		PriceWarningDuration: time.Duration(cfg.PriceWarningSeconds) * time.Second,
	}
}
