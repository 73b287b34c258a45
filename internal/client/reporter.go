package client

import (
	"context"

	"fintrack/internal/analytics"
)

// Reporter refreshes analytics on behalf of a display surface and keeps
// only the newest completed result. Refreshes may overlap when the user
// flips periods faster than the server answers; a slow response that lost
// the race never overwrites a newer one.
type Reporter struct {
	client *Client
	latest analytics.Latest[analytics.Result]
}

func NewReporter(c *Client) *Reporter {
	return &Reporter{client: c}
}

// Refresh fetches a report and records it unless a newer refresh already
// completed. It returns this call's result either way.
func (r *Reporter) Refresh(ctx context.Context, req analytics.Request) (*analytics.Result, error) {
	seq := r.latest.Begin()
	result, err := r.client.Analytics(ctx, req)
	if err != nil {
		return nil, err
	}
	r.latest.Complete(seq, *result)
	return result, nil
}

// Latest returns the newest completed report, if any.
func (r *Reporter) Latest() (analytics.Result, bool) {
	return r.latest.Get()
}
