package vision

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/model"
)

type fakeFetcher struct {
	responses map[string]string
	paths     []string
}

func (f *fakeFetcher) Get(ctx context.Context, handler, path string) ([]byte, error) {
	f.paths = append(f.paths, path)
	body, ok := f.responses[handler]
	if !ok {
		return nil, fmt.Errorf("unexpected handler %q", handler)
	}
	return []byte(body), nil
}

type fakeIngestor struct {
	partners   []PartnerRecord
	currencies []CurrencyRecord
}

func (f *fakeIngestor) IngestPartners(ctx context.Context, ws *model.Workspace, records []PartnerRecord) error {
	f.partners = append(f.partners, records...)
	return nil
}

func (f *fakeIngestor) IngestCurrencies(ctx context.Context, ws *model.Workspace, records []CurrencyRecord) error {
	f.currencies = append(f.currencies, records...)
	return nil
}

func TestPollerFetchesPartnersAndCurrencies(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"partner_sync": `[
			{"vendor_number": "2500001", "name": "Save the Children", "partner_type": "Civil Society Organization", "total_ct_cy": 120000.5},
			{"vendor_number": "2500002", "name": "Kenya Red Cross", "blocked": true}
		]`,
		"currency_sync": `[
			{"business_area_code": "2400", "currency_code": "KES"},
			{"business_area_code": "0060", "currency_code": "AFN"}
		]`,
	}}
	ingestor := &fakeIngestor{}
	poller := NewPoller(fetcher, ingestor)
	ws := &model.Workspace{SchemaName: "kenya", BusinessAreaCode: "2400"}

	require.NoError(t, poller.runWorkspace(context.Background(), ws))

	require.Len(t, ingestor.partners, 2)
	assert.Equal(t, "2500001", ingestor.partners[0].VendorNumber)
	assert.Equal(t, 120000.5, ingestor.partners[0].TotalCTCY)
	assert.True(t, ingestor.partners[1].Blocked)

	require.Len(t, ingestor.currencies, 2)
	assert.Equal(t, "KES", ingestor.currencies[0].Code)

	assert.Equal(t, []string{
		"/partners/?business_area_code=2400",
		"/currencies/?business_area_code=2400",
	}, fetcher.paths)
}

func TestPollerRejectsMalformedBatch(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"partner_sync": `{"not": "a list"}`,
	}}
	poller := NewPoller(fetcher, &fakeIngestor{})
	ws := &model.Workspace{SchemaName: "kenya", BusinessAreaCode: "2400"}

	err := poller.runWorkspace(context.Background(), ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode partner batch")
}
