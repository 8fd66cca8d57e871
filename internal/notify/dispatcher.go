// Package notify delivers queued notification outbox rows. Transitions only
// enqueue; delivery happens out of band so a slow or failing mail backend
// never holds a workflow transaction open.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

// Renderer turns an outbox row into a delivered message. The production
// renderer sends mail; tests substitute a recorder.
type Renderer interface {
	Send(ctx context.Context, ws *model.Workspace, rec *model.NotificationOutbox) error
}

// Dispatcher drains unsent outbox rows across all workspaces.
type Dispatcher struct {
	Renderer    Renderer
	BatchSize   int
	MaxAttempts int
}

// NewDispatcher builds a dispatcher with the default batch and retry limits.
func NewDispatcher(r Renderer) *Dispatcher {
	return &Dispatcher{Renderer: r, BatchSize: 100, MaxAttempts: 5}
}

// Run processes every workspace once. Rows that exhausted their attempts are
// left in place with the last error recorded; the pending gauge counts only
// rows still eligible for delivery.
func (d *Dispatcher) Run(ctx context.Context) error {
	var pending int64
	err := tenancy.ForEachTenant(ctx, func(ctx context.Context, ws *model.Workspace) error {
		n, err := d.runWorkspace(ctx, ws)
		pending += n
		return err
	})
	prometheus.OutboxPendingGauge.Set(float64(pending))
	return err
}

func (d *Dispatcher) runWorkspace(ctx context.Context, ws *model.Workspace) (int64, error) {
	db, err := tenancy.DB(ctx)
	if err != nil {
		return 0, err
	}
	log := logger.FromCtx(ctx).With(zap.String("workspace", ws.SchemaName))

	var rows []model.NotificationOutbox
	if err := db.Where("sent = ? AND attempts < ?", false, d.MaxAttempts).
		Order("id").
		Limit(d.BatchSize).
		Find(&rows).Error; err != nil {
		return 0, err
	}

	for i := range rows {
		rec := &rows[i]
		updates := map[string]interface{}{"attempts": rec.Attempts + 1}
		if err := d.Renderer.Send(ctx, ws, rec); err != nil {
			updates["last_error"] = err.Error()
			prometheus.NotifyDispatchCounter.WithLabelValues("error").Inc()
			log.Warn("notification delivery failed",
				zap.Uint("outbox_id", rec.ID),
				zap.String("template", rec.Template),
				zap.Error(err))
		} else {
			now := time.Now()
			updates["sent"] = true
			updates["sent_at"] = &now
			updates["last_error"] = ""
			prometheus.NotifyDispatchCounter.WithLabelValues("sent").Inc()
		}
		if err := db.Model(&model.NotificationOutbox{}).
			Where("id = ?", rec.ID).
			Updates(updates).Error; err != nil {
			return 0, err
		}
	}

	var remaining int64
	if err := db.Model(&model.NotificationOutbox{}).
		Where("sent = ? AND attempts < ?", false, d.MaxAttempts).
		Count(&remaining).Error; err != nil {
		return 0, err
	}
	return remaining, nil
}
