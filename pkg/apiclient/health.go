package apiclient

import (
	"context"

	"github.com/marmos91/cntfs/pkg/api/handlers"
)

// Liveness is the data of GET /health.
type Liveness struct {
	Service string `json:"service"`
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Liveness, error) {
	var l Liveness
	if err := c.get(ctx, "/health", &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Ready calls the readiness endpoint. When the store is unreachable it returns
// the store detail together with an *APIError.
func (c *Client) Ready(ctx context.Context) (*handlers.StoreHealth, error) {
	var h handlers.StoreHealth
	err := c.get(ctx, "/health/ready", &h)
	return &h, err
}
