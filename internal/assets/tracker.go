package assets

import (
	"context"
	"log"

	"festivo/api/internal/doc"
)

// UsageStore is the slice of the persistence layer the tracker needs.
type UsageStore interface {
	UpdateAssetUse(ctx context.Context, assetID, ref string, add bool) error
}

// Tracker keeps each asset's used_in list in sync with committed patches.
// Tracking runs after the commit transaction; a tracking failure never rolls
// back a committed patch, it is logged for later reconciliation.
type Tracker struct {
	store UsageStore
}

func NewTracker(store UsageStore) *Tracker {
	return &Tracker{store: store}
}

// Ref is the stable identifier recorded in an asset's used_in list.
func Ref(blockID, elementID string) string {
	return blockID + "/" + elementID
}

// Record applies the binding changes from one committed patch batch. A slot
// that moved from one asset to another produces one removal and one addition.
func (t *Tracker) Record(ctx context.Context, documentID string, changes []doc.BindingChange) {
	for _, change := range changes {
		ref := Ref(change.BlockID, change.ElementID)
		if change.OldAssetID != "" && change.OldAssetID != change.NewAssetID {
			if err := t.store.UpdateAssetUse(ctx, change.OldAssetID, ref, false); err != nil {
				log.Printf("asset tracking: drop %s from %s: %v", ref, change.OldAssetID, err)
			}
		}
		if change.NewAssetID != "" && change.NewAssetID != change.OldAssetID {
			if err := t.store.UpdateAssetUse(ctx, change.NewAssetID, ref, true); err != nil {
				log.Printf("asset tracking: add %s to %s: %v", ref, change.NewAssetID, err)
			}
		}
	}
}
