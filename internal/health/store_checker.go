package health

import (
	"context"

	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

// StoreChecker verifies that the workspace store answers a listing.
type StoreChecker struct {
	store workspace.Store
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(store workspace.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Name() string { return "workspace-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	lister, ok := c.store.(workspace.Lister)
	if !ok {
		return Degraded("store cannot list workspaces")
	}
	ws, err := lister.Workspaces(ctx)
	if err != nil {
		return Unhealthy("workspace listing failed").WithDetail("error", err.Error())
	}
	return Healthy("workspace store reachable").WithDetail("workspaces", len(ws))
}
