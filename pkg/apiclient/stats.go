package apiclient

import (
	"context"

	"github.com/marmos91/cntfs/pkg/api/handlers"
	"github.com/marmos91/cntfs/pkg/stats"
)

// Stats returns the summary over all users.
func (c *Client) Stats(ctx context.Context) (*handlers.GlobalStats, error) {
	var g handlers.GlobalStats
	if err := c.get(ctx, "/stats", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UserStats returns one user's transfers. It fails with a not found
// *APIError if the user has none.
func (c *Client) UserStats(ctx context.Context, username string) (*stats.Report, error) {
	var r stats.Report
	if err := c.get(ctx, "/stats/"+escape(username), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
