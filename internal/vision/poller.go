package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/logger"
)

// PartnerRecord is one partner row as the registry returns it.
type PartnerRecord struct {
	VendorNumber string  `json:"vendor_number"`
	Name         string  `json:"name"`
	Type         string  `json:"partner_type"`
	TotalCTCP    float64 `json:"total_ct_cp"`
	TotalCTCY    float64 `json:"total_ct_cy"`
	NetCTCY      float64 `json:"net_ct_cy"`
	ReportedCY   float64 `json:"reported_cy"`
	Deleted      bool    `json:"deleted_flag"`
	Blocked      bool    `json:"blocked"`
}

// CurrencyRecord is one currency row as the registry returns it.
type CurrencyRecord struct {
	BusinessAreaCode string `json:"business_area_code"`
	Code             string `json:"currency_code"`
}

// Ingestor consumes one workspace's batch of registry records.
type Ingestor interface {
	IngestPartners(ctx context.Context, ws *model.Workspace, records []PartnerRecord) error
	IngestCurrencies(ctx context.Context, ws *model.Workspace, records []CurrencyRecord) error
}

// Fetcher is the outbound surface the poller needs from the registry client.
type Fetcher interface {
	Get(ctx context.Context, handler, path string) ([]byte, error)
}

// Poller fetches partner and currency master data for every workspace and
// hands it to the ingestor. One workspace failing does not stop the others.
type Poller struct {
	Client   Fetcher
	Ingestor Ingestor
}

// NewPoller builds a poller over the given client and ingestor.
func NewPoller(c Fetcher, ing Ingestor) *Poller {
	return &Poller{Client: c, Ingestor: ing}
}

// Run polls every workspace once.
func (p *Poller) Run(ctx context.Context) error {
	var firstErr error
	err := tenancy.ForEachTenant(ctx, func(ctx context.Context, ws *model.Workspace) error {
		if err := p.runWorkspace(ctx, ws); err != nil {
			logger.FromCtx(ctx).Error("vision poll failed",
				zap.String("workspace", ws.SchemaName), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return firstErr
}

func (p *Poller) runWorkspace(ctx context.Context, ws *model.Workspace) error {
	path := fmt.Sprintf("/partners/?business_area_code=%s", ws.BusinessAreaCode)
	data, err := p.Client.Get(ctx, "partner_sync", path)
	if err != nil {
		return err
	}
	var partners []PartnerRecord
	if err := json.Unmarshal(data, &partners); err != nil {
		return fmt.Errorf("decode partner batch: %w", err)
	}
	if err := p.Ingestor.IngestPartners(ctx, ws, partners); err != nil {
		return err
	}

	path = fmt.Sprintf("/currencies/?business_area_code=%s", ws.BusinessAreaCode)
	data, err = p.Client.Get(ctx, "currency_sync", path)
	if err != nil {
		return err
	}
	var currencies []CurrencyRecord
	if err := json.Unmarshal(data, &currencies); err != nil {
		return fmt.Errorf("decode currency batch: %w", err)
	}
	return p.Ingestor.IngestCurrencies(ctx, ws, currencies)
}

// PartnerIngestor upserts registry records into the shared organization
// table, the workspace partner table and the workspace currency column.
type PartnerIngestor struct{}

func (PartnerIngestor) IngestPartners(ctx context.Context, ws *model.Workspace, records []PartnerRecord) error {
	shared := tenancy.Shared(ctx)
	db, err := tenancy.DB(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.VendorNumber == "" {
			continue
		}
		org := model.Organization{
			VendorNumber:     rec.VendorNumber,
			Name:             rec.Name,
			OrganizationType: rec.Type,
		}
		if err := shared.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vendor_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "organization_type"}),
		}).Create(&org).Error; err != nil {
			return fmt.Errorf("upsert organization %s: %w", rec.VendorNumber, err)
		}
		if org.ID == 0 {
			if err := shared.Where("vendor_number = ?", rec.VendorNumber).
				First(&org).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"total_ct_cp":  rec.TotalCTCP,
			"total_ct_cy":  rec.TotalCTCY,
			"net_ct_cy":    rec.NetCTCY,
			"reported_cy":  rec.ReportedCY,
			"deleted_flag": rec.Deleted,
			"blocked":      rec.Blocked,
		}
		res := db.Model(&model.Partner{}).
			Where("organization_id = ?", org.ID).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update partner %s: %w", rec.VendorNumber, res.Error)
		}
		if res.RowsAffected == 0 && !rec.Deleted {
			partner := model.Partner{OrganizationID: org.ID}
			if err := db.Create(&partner).Error; err != nil {
				return fmt.Errorf("create partner %s: %w", rec.VendorNumber, err)
			}
			if err := db.Model(&partner).Updates(updates).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// IngestCurrencies refreshes the workspace's local currency from the record
// matching its business area. Other records are ignored.
func (PartnerIngestor) IngestCurrencies(ctx context.Context, ws *model.Workspace, records []CurrencyRecord) error {
	for _, rec := range records {
		if rec.BusinessAreaCode != ws.BusinessAreaCode || rec.Code == "" {
			continue
		}
		if rec.Code == ws.LocalCurrency {
			return nil
		}
		return tenancy.Shared(ctx).Model(&model.Workspace{}).
			Where("id = ?", ws.ID).
			Update("local_currency", rec.Code).Error
	}
	return nil
}
