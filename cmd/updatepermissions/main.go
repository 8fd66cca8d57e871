package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/permission"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/config"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/logger"
)

// updatepermissions regenerates the declarative permission rows from the
// in-code seed programs. With no flags it re-seeds every module in every
// active workspace; --module and --workspace narrow the run.
func main() {
	var (
		moduleName = flag.String("module", "", "re-seed a single permission module (default: all)")
		workspace  = flag.String("workspace", "", "workspace schema name (default: all active workspaces)")
		verbosity  = flag.String("verbosity", "", "override log level (debug, info, warn, error)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	if *verbosity != "" {
		cfg.Log.Level = *verbosity
	}
	if err := logger.InitLogger(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	if *moduleName != "" {
		if _, ok := permission.LookupModule(*moduleName); !ok {
			log.Error("Unknown permission module",
				zap.String("module", *moduleName),
				zap.Strings("known", permission.ModuleNames()))
			os.Exit(2)
		}
	}

	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	ctx := context.Background()
	seed := func(ctx context.Context, ws *model.Workspace) error {
		if *moduleName != "" {
			_, err := permission.Seed(ctx, *moduleName)
			return err
		}
		return permission.SeedAll(ctx)
	}

	if *workspace != "" {
		ws, err := findWorkspace(*workspace)
		if err != nil {
			log.Error("Workspace lookup failed", zap.String("workspace", *workspace), zap.Error(err))
			os.Exit(2)
		}
		if err := seed(tenancy.WithWorkspace(ctx, ws), ws); err != nil {
			log.Error("Seed run failed", zap.String("schema", ws.SchemaName), zap.Error(err))
			os.Exit(1)
		}
	} else {
		if err := tenancy.ForEachTenant(ctx, seed); err != nil {
			log.Error("Seed run failed", zap.Error(err))
			os.Exit(1)
		}
	}

	log.Info("Permission seeding complete")
}

func findWorkspace(schema string) (*model.Workspace, error) {
	var ws model.Workspace
	if err := database.Shared().
		Where("schema_name = ? AND active = ?", schema, true).
		First(&ws).Error; err != nil {
		return nil, err
	}
	if ws.IsPublic() {
		return nil, fmt.Errorf("the public workspace holds no permission rows")
	}
	return &ws, nil
}
