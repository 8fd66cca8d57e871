package permission

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

// GenerateRows runs a module's seed program and returns its rows in canonical
// order. The output is a pure function of the module definition: two runs
// produce identical rows.
func GenerateRows(module ModuleDef) []model.PermissionRow {
	b := &builder{}
	module.seed(b)
	rows := b.rows
	sort.SliceStable(rows, func(i, j int) bool {
		a, z := rows[i], rows[j]
		if a.Target != z.Target {
			return a.Target < z.Target
		}
		if a.Kind != z.Kind {
			return a.Kind < z.Kind
		}
		if a.Effect != z.Effect {
			return a.Effect < z.Effect
		}
		return strings.Join(a.Conditions, "&") < strings.Join(z.Conditions, "&")
	})
	return rows
}

// Seed regenerates one module's permission rows in the pinned workspace.
// The run holds a module-scoped advisory lock for the length of the
// transaction so two seeders cannot race on the same module; the old rows
// are replaced atomically.
func Seed(ctx context.Context, moduleName string) (int, error) {
	module, ok := LookupModule(moduleName)
	if !ok {
		return 0, fmt.Errorf("unknown permission module %q", moduleName)
	}
	db, err := tenancy.DB(ctx)
	if err != nil {
		return 0, err
	}
	ws, err := tenancy.Current(ctx)
	if err != nil {
		return 0, err
	}

	rows := GenerateRows(module)
	log := logger.FromCtx(ctx).With(
		zap.String("module", moduleName),
		zap.String("schema", ws.SchemaName),
	)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"SELECT pg_advisory_xact_lock(hashtext(?))",
			"permission-seed:"+ws.SchemaName+":"+moduleName,
		).Error; err != nil {
			return fmt.Errorf("acquire seed lock: %w", err)
		}
		for _, entity := range module.Entities {
			if err := tx.Where("target LIKE ?", entity.Name+".%").
				Delete(&model.PermissionRow{}).Error; err != nil {
				return fmt.Errorf("clear rows for %s: %w", entity.Name, err)
			}
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		prometheus.SeederRunCounter.WithLabelValues(moduleName, "error").Inc()
		return 0, err
	}

	prometheus.SeederRunCounter.WithLabelValues(moduleName, "ok").Inc()
	log.Info("Permission module re-seeded", zap.Int("rows", len(rows)))
	return len(rows), nil
}

// SeedAll runs Seed for every module in the pinned workspace.
func SeedAll(ctx context.Context) error {
	for _, name := range ModuleNames() {
		if _, err := Seed(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
