package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	handler "github.com/onepass-ch/onepass-sub008/internal/adapters/http"
	"github.com/onepass-ch/onepass-sub008/internal/core/domain"
	"github.com/onepass-ch/onepass-sub008/internal/core/pass"
	"github.com/onepass-ch/onepass-sub008/internal/core/usecases"
)

// ---- Mock repositories ----

type mockOrgRepo struct {
	listFn      func(ctx context.Context) ([]domain.Organization, error)
	getBySlugFn func(ctx context.Context, slug string) (*domain.Organization, error)
}

func (m *mockOrgRepo) Upsert(ctx context.Context, o *domain.Organization) error { return nil }
func (m *mockOrgRepo) List(ctx context.Context) ([]domain.Organization, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockOrgRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, fmt.Errorf("organization %s not found", slug)
}

type mockEventRepo struct {
	findNearbyFn   func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Event, error)
	findInBoundsFn func(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Event, error)
	searchFn       func(ctx context.Context, query string, limit int) ([]domain.Event, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Event, error)
}

func (m *mockEventRepo) Upsert(ctx context.Context, e *domain.Event) error       { return nil }
func (m *mockEventRepo) UpsertBatch(ctx context.Context, e []domain.Event) error { return nil }
func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("event %s not found", id)
}
func (m *mockEventRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Event, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}
func (m *mockEventRepo) FindInBounds(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Event, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, bounds, limit)
	}
	return nil, nil
}
func (m *mockEventRepo) Search(ctx context.Context, query string, limit int) ([]domain.Event, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

type mockVenueRepo struct {
	listByOrgFn func(ctx context.Context, orgID string) ([]domain.Venue, error)
}

func (m *mockVenueRepo) Upsert(ctx context.Context, venue *domain.Venue) error      { return nil }
func (m *mockVenueRepo) UpsertBatch(ctx context.Context, venues []domain.Venue) error { return nil }
func (m *mockVenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	return nil, fmt.Errorf("venue %s not found", id)
}
func (m *mockVenueRepo) ListByOrganization(ctx context.Context, orgID string) ([]domain.Venue, error) {
	if m.listByOrgFn != nil {
		return m.listByOrgFn(ctx, orgID)
	}
	return nil, nil
}

type mockPassRepo struct {
	passes map[string]domain.Pass
}

func newMockPassRepo() *mockPassRepo {
	return &mockPassRepo{passes: make(map[string]domain.Pass)}
}

func (m *mockPassRepo) Upsert(ctx context.Context, p *domain.Pass) error {
	m.passes[p.UID] = *p
	return nil
}
func (m *mockPassRepo) GetByUID(ctx context.Context, uid string) (*domain.Pass, error) {
	p, ok := m.passes[uid]
	if !ok {
		return nil, fmt.Errorf("pass %s not found", uid)
	}
	return &p, nil
}
func (m *mockPassRepo) MarkScanned(ctx context.Context, uid string, at time.Time) error {
	p, ok := m.passes[uid]
	if !ok {
		return fmt.Errorf("pass %s not found", uid)
	}
	ts := at.Unix()
	p.LastScannedAt = &ts
	m.passes[uid] = p
	return nil
}
func (m *mockPassRepo) Revoke(ctx context.Context, uid string, at time.Time) error {
	p, ok := m.passes[uid]
	if !ok {
		return fmt.Errorf("pass %s not found", uid)
	}
	ts := at.Unix()
	p.RevokedAt = &ts
	p.Active = false
	m.passes[uid] = p
	return nil
}

type mockScanRepo struct {
	inserted []domain.ScanEvent
}

func (m *mockScanRepo) Insert(ctx context.Context, scan *domain.ScanEvent) error {
	m.inserted = append(m.inserted, *scan)
	return nil
}
func (m *mockScanRepo) RecentByEvent(ctx context.Context, eventID string, limit int) ([]domain.ScanEvent, error) {
	return m.inserted, nil
}

// ---- Test helpers ----

const testJWTSecret = "handlers-test-secret"

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func testPassService(t *testing.T) (*usecases.PassService, *mockPassRepo, *mockScanRepo) {
	t.Helper()
	signer, err := pass.GenerateSigner("k-test")
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := pass.NewVerifier(map[string]string{"k-test": signer.PublicKey()})
	if err != nil {
		t.Fatal(err)
	}
	passes := newMockPassRepo()
	scans := &mockScanRepo{}
	return usecases.NewPassService(passes, scans, signer, verifier, nil, nil), passes, scans
}

func makeDeps(t *testing.T, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	t.Helper()
	passes, _, _ := testPassService(t)
	d := &handler.Dependencies{
		Organizations: usecases.NewOrganizationService(&mockOrgRepo{}, &mockVenueRepo{}),
		Events:        usecases.NewEventService(&mockEventRepo{}, nil),
		Map:           usecases.NewMapService(&mockEventRepo{}, nil),
		Passes:        passes,
		JWTSecret:     []byte(testJWTSecret),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func operatorToken(t *testing.T) string {
	t.Helper()
	claims := &handler.OperatorClaims{
		OperatorID: "op-1",
		OrgSlug:    "kulturhaus",
		Role:       "door",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

// ---- Organization handler tests ----

func TestListOrganizations_Success(t *testing.T) {
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Organizations = usecases.NewOrganizationService(&mockOrgRepo{
			listFn: func(ctx context.Context) ([]domain.Organization, error) {
				return []domain.Organization{
					{ID: "o1", Slug: "kulturhaus", Name: "Kulturhaus"},
					{ID: "o2", Slug: "stadtfest", Name: "Stadtfest Verein"},
				}, nil
			},
		}, &mockVenueRepo{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/orgs", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Organization `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 organizations, got %d", len(result.Data))
	}
}

func TestListOrganizations_Pagination(t *testing.T) {
	orgs := make([]domain.Organization, 5)
	for i := range orgs {
		orgs[i] = domain.Organization{ID: fmt.Sprintf("o%d", i), Name: fmt.Sprintf("Org %d", i)}
	}

	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Organizations = usecases.NewOrganizationService(&mockOrgRepo{
			listFn: func(ctx context.Context) ([]domain.Organization, error) { return orgs, nil },
		}, &mockVenueRepo{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/orgs?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Organization `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 organizations in page, got %d", len(result.Data))
	}
	if result.Pagination.Offset != 2 {
		t.Errorf("expected offset 2, got %d", result.Pagination.Offset)
	}
}

func TestGetOrganization_NotFound(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/orgs/nope", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found error, got %s", apiErr.Code)
	}
}

func TestOrganizationVenues_Success(t *testing.T) {
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Organizations = usecases.NewOrganizationService(&mockOrgRepo{
			getBySlugFn: func(ctx context.Context, slug string) (*domain.Organization, error) {
				return &domain.Organization{ID: "o1", Slug: slug, Name: "Kulturhaus"}, nil
			},
		}, &mockVenueRepo{
			listByOrgFn: func(ctx context.Context, orgID string) ([]domain.Venue, error) {
				if orgID != "o1" {
					t.Errorf("expected org o1, got %s", orgID)
				}
				return []domain.Venue{
					{ID: "v1", Name: "Grosse Halle"},
					{ID: "v2", Name: "Foyer"},
				}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/orgs/kulturhaus/venues", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var venues []domain.Venue
	if err := json.NewDecoder(resp.Body).Decode(&venues); err != nil {
		t.Fatal(err)
	}
	if len(venues) != 2 {
		t.Errorf("expected 2 venues, got %d", len(venues))
	}
}

// ---- Event handler tests ----

func TestNearbyEvents_Success(t *testing.T) {
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Events = usecases.NewEventService(&mockEventRepo{
			findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Event, error) {
				return []domain.Event{
					{ID: "e1", Title: "Open Air", Location: domain.GeoPoint{Lat: 47.376, Lon: 8.541}},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/events/nearby?lat=47.376&lon=8.541&radius=500", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var events []domain.Event
	json.NewDecoder(resp.Body).Decode(&events)
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestNearbyEvents_MissingParams(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/events/nearby", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestNearbyEvents_BadRadius(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/events/nearby?lat=47.37&lon=8.54&radius=99999", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSearchEvents_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/events/search", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Map handler tests ----

func TestMapMarkers_ClustersStackedEvents(t *testing.T) {
	// Two events at the same venue, one elsewhere. At high zoom the two
	// co-located events still stack into one render item.
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Map = usecases.NewMapService(&mockEventRepo{
			findInBoundsFn: func(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Event, error) {
				return []domain.Event{
					{ID: "e1", Location: domain.GeoPoint{Lat: 47.3769, Lon: 8.5417}},
					{ID: "e2", Location: domain.GeoPoint{Lat: 47.3769, Lon: 8.5417}},
					{ID: "e3", Location: domain.GeoPoint{Lat: 47.5596, Lon: 7.5886}},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/map/markers?min_lat=47&min_lon=7&max_lat=48&max_lon=9&zoom=17", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Items []domain.RenderItem `json:"items"`
		Count int                 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 render items, got %d", result.Count)
	}
	if len(result.Items[0].Markers) != 2 {
		t.Errorf("expected first item to hold 2 stacked markers, got %d", len(result.Items[0].Markers))
	}
}

func TestMapMarkers_BadBounds(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/map/markers?min_lat=48&min_lon=9&max_lat=47&max_lon=7&zoom=12", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMapMarkers_BadZoom(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/map/markers?min_lat=47&min_lon=7&max_lat=48&max_lon=9&zoom=30", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Pass handler tests ----

func TestIssuePass_RequiresOperatorToken(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("POST", "/v1/passes", strings.NewReader(`{"uid":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestIssuePass_Success(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("POST", "/v1/passes", strings.NewReader(`{"uid":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var result struct {
		Pass   domain.Pass `json:"pass"`
		Token  string      `json:"token"`
		Status string      `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pass.UID != "u1" {
		t.Errorf("expected uid u1, got %q", result.Pass.UID)
	}
	if !strings.HasPrefix(result.Token, "onepass:user:v1.") {
		t.Errorf("token missing prefix: %q", result.Token)
	}
	if result.Status != pass.StatusActive {
		t.Errorf("expected status %q, got %q", pass.StatusActive, result.Status)
	}
}

func TestDecodePass_Malformed(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("POST", "/v1/passes/decode", strings.NewReader(`{"token":"garbage"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestVerifyPass_RoundTrip(t *testing.T) {
	svc, _, _ := testPassService(t)
	deps := makeDeps(t, func(d *handler.Dependencies) { d.Passes = svc })
	app := setupApp(deps)

	issued, err := svc.Issue(context.Background(), "u42")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(map[string]string{"token": svc.Token(issued)})

	req := httptest.NewRequest("POST", "/v1/passes/verify", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Valid bool `json:"valid"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if !result.Valid {
		t.Error("expected valid=true")
	}
}

func TestVerifyPass_Revoked(t *testing.T) {
	svc, _, _ := testPassService(t)
	deps := makeDeps(t, func(d *handler.Dependencies) { d.Passes = svc })
	app := setupApp(deps)

	issued, err := svc.Issue(context.Background(), "u7")
	if err != nil {
		t.Fatal(err)
	}
	token := svc.Token(issued)
	if err := svc.Revoke(context.Background(), "u7"); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{"token": token})
	req := httptest.NewRequest("POST", "/v1/passes/verify", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422 for revoked pass, got %d", resp.StatusCode)
	}
}

func TestRecordScan_Accepted(t *testing.T) {
	svc, _, scans := testPassService(t)
	deps := makeDeps(t, func(d *handler.Dependencies) { d.Passes = svc })
	app := setupApp(deps)

	issued, err := svc.Issue(context.Background(), "u9")
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{
		"token":     svc.Token(issued),
		"event_id":  "e1",
		"device_id": "door-3",
	})
	req := httptest.NewRequest("POST", "/v1/scans", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var scan domain.ScanEvent
	json.NewDecoder(resp.Body).Decode(&scan)
	if scan.Result != domain.ScanAccepted {
		t.Errorf("expected accepted, got %s", scan.Result)
	}
	if len(scans.inserted) != 1 {
		t.Errorf("expected 1 stored scan, got %d", len(scans.inserted))
	}
}

func TestRecordScan_BadToken(t *testing.T) {
	app := setupApp(makeDeps(t))

	body := `{"token":"onepass:user:v1.not-base64!.sig","event_id":"e1"}`
	req := httptest.NewRequest("POST", "/v1/scans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var scan domain.ScanEvent
	json.NewDecoder(resp.Body).Decode(&scan)
	if scan.Result != domain.ScanMalformed {
		t.Errorf("expected malformed, got %s", scan.Result)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
