package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/unicef/etools-core/internal/model"
)

func TestLogRendererSend(t *testing.T) {
	ws := &model.Workspace{SchemaName: "kenya"}
	rec := &model.NotificationOutbox{
		Template: "audit/engagement/final",
		Audience: "focal_points",
		Payload:  datatypes.JSON(`{"reference_number":"KEN/2024/0001/AUDIT"}`),
	}
	assert.NoError(t, LogRenderer{}.Send(context.Background(), ws, rec))

	// an empty payload is fine
	rec.Payload = nil
	assert.NoError(t, LogRenderer{}.Send(context.Background(), ws, rec))

	rec.Payload = datatypes.JSON(`{broken`)
	assert.Error(t, LogRenderer{}.Send(context.Background(), ws, rec))
}
