package history

import "context"

// Adapter bridges Store to the core HistoryRecorder port and applies the
// retention limit after each write.
type Adapter struct {
	store  *Store
	retain int
}

func NewAdapter(store *Store, retain int) *Adapter {
	return &Adapter{store: store, retain: retain}
}

func (a *Adapter) Record(ctx context.Context, rec BuildRecord) error {
	if _, err := a.store.SaveBuild(ctx, rec); err != nil {
		return err
	}
	_, err := a.store.Prune(ctx, a.retain)
	return err
}

func (a *Adapter) Recent(ctx context.Context, limit int) ([]BuildRecord, error) {
	return a.store.LoadBuilds(ctx, limit)
}
