// Package tasks defines the recurring sync jobs registered with the
// scheduler.
package tasks

import (
	"context"
	"time"

	"github.com/relayarr/relayarr/internal/scheduler"
	"github.com/relayarr/relayarr/internal/status"
)

// StatusSync builds the recurring status/junction pass.
func StatusSync(svc *status.Service, interval time.Duration) scheduler.TaskConfig {
	return scheduler.TaskConfig{
		ID:          "status-sync",
		Name:        "Status Sync",
		Description: "Diffs watchlist rows against the live Radarr and Sonarr libraries",
		Interval:    interval,
		Func: func(ctx context.Context) error {
			_, err := svc.SyncAllStatuses(ctx)
			return err
		},
	}
}

// InstanceSync builds the recurring fleet reconciliation.
func InstanceSync(svc *status.Service, interval time.Duration) scheduler.TaskConfig {
	return scheduler.TaskConfig{
		ID:          "instance-sync",
		Name:        "Instance Sync",
		Description: "Reconciles every non-default instance's library into the watchlist",
		Interval:    interval,
		Func: func(ctx context.Context) error {
			_, err := svc.SyncAllConfiguredInstances(ctx)
			return err
		},
	}
}
