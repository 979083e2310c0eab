package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/ports"
)

// EventService handles event catalog business logic.
type EventService struct {
	events ports.EventRepository
	cache  ports.CacheService
}

// NewEventService creates a new EventService.
func NewEventService(events ports.EventRepository, cache ports.CacheService) *EventService {
	return &EventService{events: events, cache: cache}
}

// FindNearby returns published events within radiusMeters of the given point.
func (s *EventService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	// Try cache
	cacheKey := fmt.Sprintf("events:nearby:%.4f:%.4f:%.0f:%d", lat, lon, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var events []domain.Event
			if err := json.Unmarshal(data, &events); err == nil {
				return events, nil
			}
		}
	}

	events, err := s.events.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	// Cache for 2 minutes; organizers publish and unpublish through the day
	if s.cache != nil {
		if data, err := json.Marshal(events); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 120)
		}
	}

	return events, nil
}

// Search performs full-text search on event titles.
func (s *EventService) Search(ctx context.Context, query string, limit int) ([]domain.Event, error) {
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("events:search:%s:%d", query, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var events []domain.Event
			if err := json.Unmarshal(data, &events); err == nil {
				return events, nil
			}
		}
	}

	events, err := s.events.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(events); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 120)
		}
	}

	return events, nil
}

// GetByID returns a single event.
func (s *EventService) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	cacheKey := "events:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var event domain.Event
			if err := json.Unmarshal(data, &event); err == nil {
				return &event, nil
			}
		}
	}

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(event); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return event, nil
}
