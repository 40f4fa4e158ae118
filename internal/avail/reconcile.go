package avail

// ImageAsset is a service image. An empty ID means the asset only exists locally:
// it has to be uploaded and can never be deleted remotely.
type ImageAsset struct {
	ID  string `json:"id,omitempty"`
	URI string `json:"uri"`
}

// Local reports whether the server has not confirmed the asset yet.
func (a ImageAsset) Local() bool { return a.ID == "" }

// AssetID is the identity function for ImageAsset reconciliation.
func AssetID(a ImageAsset) string { return a.ID }

// SlotID is the identity function for TimeSlot reconciliation.
func SlotID(s TimeSlot) string { return s.ID }

// Delta is the minimal remote mutation between two states.
type Delta[T any] struct {
	// Removed holds ids confirmed by the server that the working set dropped.
	Removed []string
	// Added holds working-set items the server has never confirmed.
	Added []T
}

// Empty reports whether nothing needs to be sent.
func (d Delta[T]) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// Diff compares the server-confirmed ids with the current working set. Items without
// an id are only ever Added; an id is Removed when it no longer appears in current.
// Removed keeps the order of originalIDs and lists each id once.
func Diff[T any](originalIDs []string, current []T, idOf func(T) string) Delta[T] {
	live := make(map[string]struct{}, len(current))
	var delta Delta[T]
	for _, item := range current {
		id := idOf(item)
		if id == "" {
			delta.Added = append(delta.Added, item)
			continue
		}
		live[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(originalIDs))
	for _, id := range originalIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := live[id]; !ok {
			delta.Removed = append(delta.Removed, id)
		}
	}
	return delta
}

// IDs extracts the non-empty ids of items. Run it on freshly fetched server state to
// get the originalIDs of the next edit session.
func IDs[T any](items []T, idOf func(T) string) []string {
	var out []string
	for _, item := range items {
		if id := idOf(item); id != "" {
			out = append(out, id)
		}
	}
	return out
}
