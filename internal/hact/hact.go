// Package hact maintains the per-partner HACT counters: guarded increments
// fed by workflow transitions and the yearly freeze into history rows.
package hact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/logger"
)

// Service implements guarded counter increments and the yearly freeze.
type Service struct{}

// NewService builds the HACT service.
func NewService() *Service { return &Service{} }

// Increment bumps one dotted counter path inside the partner's hact_values
// document. It runs inside the caller's transaction: the partner row is
// locked, a guard row keyed by (counter, source object) is inserted, and the
// increment is skipped when the guard already exists. The same source object
// therefore never feeds the same counter twice.
func (s *Service) Increment(tx *gorm.DB, partnerID uint, counter, sourceKind string, sourceID uint) error {
	var partner model.Partner
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&partner, partnerID).Error; err != nil {
		return fmt.Errorf("lock partner %d: %w", partnerID, err)
	}

	guard := model.HactCounterGuard{
		PartnerID:      partnerID,
		Counter:        counter,
		SourceKind:     sourceKind,
		SourceObjectID: sourceID,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&guard)
	if res.Error != nil {
		return fmt.Errorf("guard hact counter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Already counted for this source object.
		return nil
	}

	values, err := decodeValues(partner.HactValues)
	if err != nil {
		return err
	}
	bumpPath(values, counter)

	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return tx.Model(&model.Partner{}).
		Where("id = ?", partnerID).
		Update("hact_values", datatypes.JSON(raw)).Error
}

// FreezeResult reports one workspace freeze run.
type FreezeResult struct {
	Frozen  int
	Skipped int
}

// Freeze snapshots every partner's live counters into a history row for the
// given year and resets the live document. Partners already frozen for that
// year are skipped, so the run is safe to repeat.
func (s *Service) Freeze(ctx context.Context, year int) (FreezeResult, error) {
	db, err := tenancy.DB(ctx)
	if err != nil {
		return FreezeResult{}, err
	}
	log := logger.FromCtx(ctx)

	var out FreezeResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var partners []model.Partner
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("deleted_flag = ?", false).
			Order("id").
			Find(&partners).Error; err != nil {
			return err
		}
		for i := range partners {
			p := &partners[i]
			hist := model.HactHistory{
				PartnerID:    p.ID,
				Year:         year,
				FrozenValues: p.HactValues,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&hist)
			if res.Error != nil {
				return fmt.Errorf("freeze partner %d: %w", p.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				out.Skipped++
				continue
			}
			if err := tx.Model(&model.Partner{}).
				Where("id = ?", p.ID).
				Update("hact_values", datatypes.JSON("{}")).Error; err != nil {
				return err
			}
			out.Frozen++
		}
		return nil
	})
	if err != nil {
		return FreezeResult{}, err
	}
	log.Info("hact freeze complete",
		zap.Int("year", year),
		zap.Int("frozen", out.Frozen),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

func decodeValues(raw datatypes.JSON) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("decode hact_values: %w", err)
		}
	}
	return values, nil
}

// bumpPath increments the numeric leaf at a dotted path, creating
// intermediate objects as needed. A non-object in the middle of the path is
// replaced; a non-numeric leaf restarts at 1.
func bumpPath(values map[string]interface{}, path string) {
	parts := strings.Split(path, ".")
	node := values
	for _, key := range parts[:len(parts)-1] {
		child, ok := node[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[key] = child
		}
		node = child
	}
	leaf := parts[len(parts)-1]
	n, _ := node[leaf].(float64)
	node[leaf] = n + 1
}
