package weather

import (
	"context"
	"sync"
	"time"
)

// Resolver is what a View needs from the Service.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) Result
}

// Snapshot is the loading/error/data state exposed to the dashboard.
type Snapshot struct {
	State      State      `json:"state"`
	Loading    bool       `json:"loading"`
	Data       *Forecast  `json:"data"`
	Error      string     `json:"error,omitempty"`
	Degraded   bool       `json:"degraded"`
	Advisory   string     `json:"advisory,omitempty"`
	CachedAt   *time.Time `json:"cachedAt,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Generation uint64     `json:"generation"`
}

// View holds the dashboard's current selection state. Every Load starts a new
// generation; a result that settles after a newer Load began is discarded, so
// out-of-order responses never overwrite a newer selection.
type View struct {
	resolver Resolver

	mu   sync.Mutex
	gen  uint64
	snap Snapshot
}

// NewView creates an idle View.
func NewView(resolver Resolver) *View {
	return &View{
		resolver: resolver,
		snap:     Snapshot{State: StateIdle},
	}
}

// Load resolves the coordinates and applies the result if no newer Load has
// started meanwhile. It returns the View's snapshot after the attempt and
// whether this call's result was applied.
func (v *View) Load(ctx context.Context, lat, lon float64) (Snapshot, bool) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.snap = Snapshot{
		State:      StateLoading,
		Loading:    true,
		Latitude:   lat,
		Longitude:  lon,
		Generation: gen,
	}
	v.mu.Unlock()

	res := v.resolver.Resolve(ctx, lat, lon)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		return v.snap, false
	}

	v.snap = Snapshot{
		State:      res.State,
		Data:       res.Data,
		Error:      res.Error,
		Degraded:   res.Degraded,
		Advisory:   res.Advisory,
		Latitude:   lat,
		Longitude:  lon,
		Generation: gen,
	}
	if !res.CachedAt.IsZero() {
		cachedAt := res.CachedAt
		v.snap.CachedAt = &cachedAt
	}
	return v.snap, true
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}
