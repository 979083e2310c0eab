package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onepass-ch/onepass-sub008/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the organizations whose catalogs get imported. Each entry
// carries either an inline catalog or a URL to fetch one from.
type Manifest struct {
	Source        string              `json:"source"`
	Organizations []OrganizationEntry `json:"organizations"`
}

type OrganizationEntry struct {
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	URL        string   `json:"url,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
	CatalogURL string   `json:"catalog_url,omitempty"`
	Catalog    *Catalog `json:"catalog,omitempty"`
}

// Catalog is the venue/event payload an organization exports.
type Catalog struct {
	Venues []VenueEntry `json:"venues"`
	Events []EventEntry `json:"events"`
}

type VenueEntry struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Address  string  `json:"address,omitempty"`
	Capacity int     `json:"capacity,omitempty"`
}

type EventEntry struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Venue       string    `json:"venue"` // venue name within the catalog
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Capacity    int       `json:"capacity,omitempty"`
	Published   bool      `json:"published"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("onepass-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("OnePass Catalog Importer — %d organizations from %s", len(manifest.Organizations), manifest.Source)

	// Filter organizations (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 60 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent imports

	for _, org := range manifest.Organizations {
		if len(slugFilter) > 0 && !slugFilter[org.Slug] {
			continue
		}

		wg.Add(1)
		go func(o OrganizationEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importOrganization(ctx, pool, client, o); err != nil {
				log.Printf("ERROR [%s]: %v", o.Slug, err)
			}
		}(org)
	}

	wg.Wait()
	log.Println("import complete")
}

// ---------------------------------------------------------------------------
// Per-organization import
// ---------------------------------------------------------------------------

func importOrganization(ctx context.Context, pool *pgxpool.Pool, client *http.Client, org OrganizationEntry) error {
	catalog := org.Catalog
	if catalog == nil {
		if org.CatalogURL == "" {
			return fmt.Errorf("no catalog or catalog_url")
		}
		fetched, err := fetchCatalog(client, org.CatalogURL)
		if err != nil {
			return err
		}
		catalog = fetched
	}

	orgID, err := upsertOrganization(ctx, pool, org)
	if err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	log.Printf("[%s] organization_id=%s", org.Slug, orgID)

	venueIDs, err := processVenues(ctx, pool, catalog.Venues, orgID, org.Slug)
	if err != nil {
		return fmt.Errorf("venues: %w", err)
	}
	if err := processEvents(ctx, pool, catalog, venueIDs, orgID, org.Slug); err != nil {
		return fmt.Errorf("events: %w", err)
	}

	log.Printf("[%s] done", org.Slug)
	return nil
}

func fetchCatalog(client *http.Client, url string) (*Catalog, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &catalog, nil
}

// ---------------------------------------------------------------------------
// Organization upsert
// ---------------------------------------------------------------------------

func upsertOrganization(ctx context.Context, pool *pgxpool.Pool, o OrganizationEntry) (string, error) {
	tz := o.Timezone
	if tz == "" {
		tz = "Europe/Zurich"
	}
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO organizations (slug, name, url, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url
		RETURNING id
	`, o.Slug, o.Name, o.URL, tz).Scan(&id)
	return id, err
}

// ---------------------------------------------------------------------------
// Venues
// ---------------------------------------------------------------------------

func processVenues(ctx context.Context, pool *pgxpool.Pool, venues []VenueEntry, orgID, slug string) (map[string]string, error) {
	ids := make(map[string]string, len(venues)) // venue name -> id

	for _, v := range venues {
		if v.Lat == 0 && v.Lon == 0 {
			continue
		}
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO venues (organization_id, name, location, address, capacity)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6)
			ON CONFLICT (organization_id, name) DO UPDATE
			SET location = EXCLUDED.location, address = EXCLUDED.address,
			    capacity = EXCLUDED.capacity
			RETURNING id
		`, orgID, v.Name, v.Lon, v.Lat, nilEmpty(v.Address), v.Capacity).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("venue %q: %w", v.Name, err)
		}
		ids[v.Name] = id
	}

	log.Printf("[%s]   venues: %d", slug, len(ids))
	return ids, nil
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func processEvents(ctx context.Context, pool *pgxpool.Pool, catalog *Catalog, venueIDs map[string]string, orgID, slug string) error {
	const batchSize = 500
	batch := &pgx.Batch{}
	count := 0
	total := 0
	skipped := 0

	for _, e := range catalog.Events {
		venueID, ok := venueIDs[e.Venue]
		if !ok {
			skipped++
			continue
		}
		if e.Title == "" || e.StartsAt.IsZero() {
			skipped++
			continue
		}

		// Event location denormalizes the venue's point so map queries
		// never need a join.
		batch.Queue(`
			INSERT INTO events (organization_id, venue_id, title, description, location, starts_at, ends_at, capacity, published)
			SELECT $1, $2, $3, $4, v.location, $5, $6, $7, $8
			FROM venues v WHERE v.id = $2
			ON CONFLICT (organization_id, title, starts_at) DO UPDATE
			SET description = EXCLUDED.description, location = EXCLUDED.location,
			    ends_at = EXCLUDED.ends_at, capacity = EXCLUDED.capacity,
			    published = EXCLUDED.published
		`, orgID, venueID, e.Title, nilEmpty(e.Description), e.StartsAt, e.EndsAt, e.Capacity, e.Published)

		count++
		total++

		if count >= batchSize {
			if err := flushBatch(ctx, pool, batch, count); err != nil {
				return err
			}
			batch = &pgx.Batch{}
			count = 0
		}
	}

	if count > 0 {
		if err := flushBatch(ctx, pool, batch, count); err != nil {
			return err
		}
	}

	log.Printf("[%s]   events: %d (%d skipped)", slug, total, skipped)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func flushBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, n int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}

func nilEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
