package vision

import (
	"context"
	"fmt"
)

// Exporter posts finished workflow objects to the registry. Calls are
// best-effort after the local transaction has committed; the caller logs
// failures and never rolls back on them.
type Exporter struct {
	client *Client
}

// NewExporter builds an exporter over the given client.
func NewExporter(c *Client) *Exporter {
	return &Exporter{client: c}
}

// Export posts one object's JSON representation. The kind selects the
// registry path and names the sync log row.
func (e *Exporter) Export(ctx context.Context, kind string, obj interface{}) error {
	path := fmt.Sprintf("/exports/%s/", kind)
	_, err := e.client.Post(ctx, "export_"+kind, path, obj)
	return err
}
