// Package notify announces newly created stock movements. One business event
// produces exactly one notification carrying the whole movement batch.
package notify

import (
	"context"

	"main/internal/model"
)

// Notifier publishes one batch of movements per business event. Delivery is
// fire-and-forget from the ledger's point of view.
type Notifier interface {
	Publish(ctx context.Context, tc model.TenantContext, movements []model.Movement) error
}

// Batch is one event's worth of movements together with its tenant identity.
type Batch struct {
	Tenant    model.TenantContext
	Movements []model.Movement
}
