package domain

// MapMarker is a single pin candidate on the event map: an event that has a
// venue coordinate. Markers without coordinates are filtered out before they
// reach the clustering layer.
type MapMarker struct {
	ID    string   `json:"id"`
	Point GeoPoint `json:"point"`
}

// RenderItem is one pin actually drawn on the map. It stands for one or more
// markers: a single event pin when len(Markers) == 1, a cluster pin when two
// or more markers collapsed into it. Point is the pin's representative
// coordinate.
type RenderItem struct {
	Point   GeoPoint    `json:"point"`
	Markers []MapMarker `json:"markers"`
}

// IsCluster reports whether the item represents two or more markers.
func (r RenderItem) IsCluster() bool {
	return len(r.Markers) > 1
}

// Count returns the number of markers the item stands for.
func (r RenderItem) Count() int {
	return len(r.Markers)
}
