package subscription

import (
	"time"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
)

// ReconcileAssociations carries the system-owned fields of existing
// associations over to an edited list. Entries are matched on the
// (alert, enumeration item or nil) key: a match keeps its create time and
// completion watermark, a new key starts at now with no watermark, and keys
// missing from updated are dropped. An empty or nil updated list is
// returned as submitted.
func ReconcileAssociations(existing, updated []entities.AlertAssociation, now time.Time) []entities.AlertAssociation {
	if len(updated) == 0 {
		return updated
	}

	byKey := make(map[entities.AssociationKey]entities.AlertAssociation, len(existing))
	for _, a := range existing {
		byKey[a.Key()] = a
	}

	out := make([]entities.AlertAssociation, len(updated))
	for i, a := range updated {
		if prev, ok := byKey[a.Key()]; ok {
			a.CreateTime = prev.CreateTime
			a.AnomalyCompletionWatermark = prev.AnomalyCompletionWatermark
		} else {
			a.CreateTime = now
			a.AnomalyCompletionWatermark = nil
		}
		out[i] = a
	}
	return out
}

// initAssociations stamps every association of a new group.
func initAssociations(assocs []entities.AlertAssociation, now time.Time) {
	for i := range assocs {
		assocs[i].CreateTime = now
		assocs[i].AnomalyCompletionWatermark = nil
	}
}
