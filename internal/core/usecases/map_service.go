package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/onepass-ch/onepass-sub008/internal/core/cluster"
	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/ports"
	"github.com/onepass-ch/onepass-sub008/internal/pkg/metrics"
)

// maxMapMarkers bounds how many events one map request pulls from the repo.
const maxMapMarkers = 2000

// MapService turns the event catalog into clustered map pins.
type MapService struct {
	events ports.EventRepository
	cache  ports.CacheService
}

// NewMapService creates a new MapService.
func NewMapService(events ports.EventRepository, cache ports.CacheService) *MapService {
	return &MapService{events: events, cache: cache}
}

// Markers returns the render items for a viewport: published events inside
// the bounds, stacked by identical venue coordinate and merged by proximity
// for the zoom level. Results are cached per (bounds, zoom bucket); zoom is
// bucketed to half-steps so tiny camera changes hit the same key.
func (s *MapService) Markers(ctx context.Context, bounds domain.Bounds, zoom float64) ([]domain.RenderItem, error) {
	zoomBucket := math.Round(zoom*2) / 2

	cacheKey := fmt.Sprintf("map:markers:%.3f:%.3f:%.3f:%.3f:%.1f",
		bounds.MinLat, bounds.MinLon, bounds.MaxLat, bounds.MaxLon, zoomBucket)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var items []domain.RenderItem
			if err := json.Unmarshal(data, &items); err == nil {
				metrics.MapCacheHits.Inc()
				return items, nil
			}
		}
		metrics.MapCacheMisses.Inc()
	}

	events, err := s.events.FindInBounds(ctx, bounds, maxMapMarkers)
	if err != nil {
		return nil, fmt.Errorf("find events in bounds: %w", err)
	}

	markers := make([]domain.MapMarker, 0, len(events))
	for _, e := range events {
		markers = append(markers, domain.MapMarker{ID: e.ID, Point: e.Location})
	}

	start := time.Now()
	items := cluster.Build(markers, zoomBucket)
	metrics.ClusterComputeDuration.Observe(time.Since(start).Seconds())

	if s.cache != nil {
		if data, err := json.Marshal(items); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}

	return items, nil
}
