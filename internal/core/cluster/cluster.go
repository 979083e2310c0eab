// Package cluster groups nearby map markers into cluster pins so that the
// event map stays readable at low zoom levels. It is pure and deterministic:
// the same markers and zoom always produce the same partitioning, and every
// input marker appears in exactly one output item.
package cluster

import (
	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/geospatial"
)

const (
	// pinSizePx is the on-screen marker diameter used to derive the merge
	// radius, matching common map SDK marker sizes.
	pinSizePx = 40

	// maxClusterZoom is the zoom level at and above which no proximity
	// merging happens; only identical coordinates still stack.
	maxClusterZoom = 16.0
)

// StackIdentical groups markers whose coordinates are bit-for-bit identical
// (several events at the same venue) into one item. Markers with a unique
// coordinate become single-pin items. Output order follows first appearance
// in the input.
func StackIdentical(markers []domain.MapMarker) []domain.RenderItem {
	if len(markers) == 0 {
		return nil
	}

	index := make(map[domain.GeoPoint]int, len(markers))
	items := make([]domain.RenderItem, 0, len(markers))

	for _, m := range markers {
		if i, ok := index[m.Point]; ok {
			items[i].Markers = append(items[i].Markers, m)
			continue
		}
		index[m.Point] = len(items)
		items = append(items, domain.RenderItem{
			Point:   m.Point,
			Markers: []domain.MapMarker{m},
		})
	}
	return items
}

// ForZoom merges items whose representative points fall within the merge
// radius for the given zoom level. The policy is greedy seeded grouping:
// walking the input in order, each not-yet-consumed item seeds a group and
// absorbs every later item within radius of the seed's point. The merged
// item keeps the seed's representative point (first member's coordinate,
// not a centroid). At zoom >= 16 the radius is zero and items pass through
// unchanged.
func ForZoom(items []domain.RenderItem, zoom float64) []domain.RenderItem {
	if len(items) == 0 {
		return nil
	}

	radius := RadiusMeters(zoom)
	if radius <= 0 {
		out := make([]domain.RenderItem, len(items))
		copy(out, items)
		return out
	}

	consumed := make([]bool, len(items))
	out := make([]domain.RenderItem, 0, len(items))

	for i := range items {
		if consumed[i] {
			continue
		}
		consumed[i] = true

		merged := domain.RenderItem{
			Point:   items[i].Point,
			Markers: append([]domain.MapMarker(nil), items[i].Markers...),
		}

		for j := i + 1; j < len(items); j++ {
			if consumed[j] {
				continue
			}
			d := geospatial.Haversine(
				merged.Point.Lat, merged.Point.Lon,
				items[j].Point.Lat, items[j].Point.Lon,
			)
			if d <= radius {
				merged.Markers = append(merged.Markers, items[j].Markers...)
				consumed[j] = true
			}
		}

		out = append(out, merged)
	}
	return out
}

// Build runs both passes: identical-coordinate stacking, then zoom-dependent
// proximity merging.
func Build(markers []domain.MapMarker, zoom float64) []domain.RenderItem {
	return ForZoom(StackIdentical(markers), zoom)
}

// RadiusMeters returns the merge radius for a zoom level: the ground size of
// a pin at that zoom. Radius shrinks by half per zoom step and is zero at
// high zoom levels.
func RadiusMeters(zoom float64) float64 {
	if zoom >= maxClusterZoom {
		return 0
	}
	return geospatial.MetersPerPixel(zoom) * pinSizePx
}
