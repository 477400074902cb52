// Package state persists the per-ticker last-alerted direction between runs.
package state

import (
	"context"

	"golang-stock-alerts/internal/alerting/corridor"
)

// Store loads and saves the alert state mapping. Load must tolerate missing
// or corrupt backing data by returning an empty mapping; losing the state
// costs at most one duplicate alert, which beats aborting the run.
type Store interface {
	Load(ctx context.Context) (map[string]corridor.Direction, error)
	Save(ctx context.Context, st map[string]corridor.Direction) error
}
