package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/pkg/logger"
)

// LogRenderer writes each notification to the structured log. It is the
// delivery backend until a mail gateway is configured; the outbox row
// lifecycle is identical either way.
type LogRenderer struct{}

func (LogRenderer) Send(ctx context.Context, ws *model.Workspace, rec *model.NotificationOutbox) error {
	var payload map[string]interface{}
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return err
		}
	}
	logger.FromCtx(ctx).Info("notification",
		zap.String("workspace", ws.SchemaName),
		zap.String("template", rec.Template),
		zap.String("audience", rec.Audience),
		zap.Any("payload", payload))
	return nil
}
