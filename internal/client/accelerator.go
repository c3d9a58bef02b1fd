package client

import (
	"context"
	"fmt"

	"github.com/yuca-profiler/yuca/internal/domain"
)

// Accelerator drives a second yuca service as the energy collaborator of a
// registry. Informational messages from the collaborator are returned as
// ErrRejected.
type Accelerator struct {
	client *Client
}

var _ domain.Accelerator = (*Accelerator)(nil)

func NewAccelerator(c *Client) *Accelerator {
	return &Accelerator{client: c}
}

func (a *Accelerator) Start(ctx context.Context, processID int64, periodMillis int) error {
	resp, err := a.client.Start(ctx, domain.StartRequest{ProcessID: processID, PeriodMillis: &periodMillis})
	if err != nil {
		return err
	}
	if resp.Message != "" {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	return nil
}

func (a *Accelerator) Stop(ctx context.Context, processID int64) error {
	resp, err := a.client.Stop(ctx, domain.StopRequest{ProcessID: processID})
	if err != nil {
		return err
	}
	if resp.Message != "" {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	return nil
}

func (a *Accelerator) Read(ctx context.Context, processID int64) (*domain.Report, error) {
	resp, err := a.client.Read(ctx, domain.ReadRequest{ProcessID: processID})
	if err != nil {
		return nil, err
	}
	return resp.Report, nil
}
