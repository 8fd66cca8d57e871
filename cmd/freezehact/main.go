package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/hact"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/config"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/logger"
)

// freezehact archives every partner's live assurance counters into the
// yearly history table and resets them. The run is idempotent per year, so
// re-running after a partial failure only freezes the partners still live.
func main() {
	var (
		year      = flag.Int("year", time.Now().Year()-1, "year to freeze the counters under")
		workspace = flag.String("workspace", "", "workspace schema name (default: all active workspaces)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	if *year < 2000 || *year > time.Now().Year() {
		log.Error("Refusing to freeze an implausible year", zap.Int("year", *year))
		os.Exit(2)
	}

	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	svc := hact.NewService()
	ctx := context.Background()
	var frozen, skipped int

	freeze := func(ctx context.Context, ws *model.Workspace) error {
		res, err := svc.Freeze(ctx, *year)
		if err != nil {
			return fmt.Errorf("freeze %s: %w", ws.SchemaName, err)
		}
		frozen += res.Frozen
		skipped += res.Skipped
		return nil
	}

	if *workspace != "" {
		var ws model.Workspace
		if err := database.Shared().
			Where("schema_name = ? AND active = ?", *workspace, true).
			First(&ws).Error; err != nil {
			log.Error("Workspace lookup failed", zap.String("workspace", *workspace), zap.Error(err))
			os.Exit(2)
		}
		if err := freeze(tenancy.WithWorkspace(ctx, &ws), &ws); err != nil {
			log.Error("Freeze run failed", zap.Error(err))
			os.Exit(1)
		}
	} else {
		if err := tenancy.ForEachTenant(ctx, freeze); err != nil {
			log.Error("Freeze run failed", zap.Error(err))
			os.Exit(1)
		}
	}

	log.Info("HACT freeze complete",
		zap.Int("year", *year),
		zap.Int("frozen", frozen),
		zap.Int("skipped", skipped))
}
