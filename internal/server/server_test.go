package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"gymgate/internal/config"
	"gymgate/internal/db"
	"gymgate/internal/domain"
	"gymgate/internal/engine"
	"gymgate/internal/identity"
	"gymgate/internal/migrate"
	"gymgate/internal/repo"
)

var testNow = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("test")
	cfg.Tokens.MemberSecret = "member-secret"
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return testNow }
	ident := identity.Resolver{Repo: e.Repo, Secret: cfg.Tokens.MemberSecret}
	handler, err := New(Config{Engine: e, Identity: ident, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func seedMember(t *testing.T, srv *testServer, code int64, disciplineName string, requiresReservation bool, credits int) (domain.Person, domain.Discipline) {
	t.Helper()
	ctx := context.Background()
	r := srv.Engine.Repo
	p := domain.Person{ID: uuid.New().String(), Code: code, Name: "Ana", CreatedAt: testNow.Format(time.RFC3339)}
	if err := r.InsertPerson(ctx, p); err != nil {
		t.Fatalf("insert person: %v", err)
	}
	d := domain.Discipline{ID: uuid.New().String(), Name: disciplineName, RequiresReservation: requiresReservation}
	if err := r.InsertDiscipline(ctx, d); err != nil {
		t.Fatalf("insert discipline: %v", err)
	}
	pl := domain.Plan{ID: uuid.New().String(), Name: disciplineName + " plan", DisciplineID: d.ID, Credits: &credits, ValidDays: 30}
	if err := r.InsertPlan(ctx, pl); err != nil {
		t.Fatalf("insert plan: %v", err)
	}
	m := domain.Membership{
		ID:               uuid.New().String(),
		PersonID:         p.ID,
		PlanID:           pl.ID,
		DisciplineID:     d.ID,
		RemainingCredits: credits,
		Status:           domain.MembershipActive,
		ExpiresAt:        testNow.AddDate(0, 1, 0).Format(time.RFC3339),
		CreatedAt:        testNow.AddDate(0, 0, -7).Format(time.RFC3339),
	}
	if err := r.InsertMembership(ctx, m); err != nil {
		t.Fatalf("insert membership: %v", err)
	}
	return p, d
}

func TestCheckInGrantedEnvelope(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	seedMember(t, srv, 1042, "musculacion", false, 10)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/check-in", map[string]any{
		"credential": "1042",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var out CheckInResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Decision != "granted" || out.Grant == nil {
		t.Fatalf("expected granted envelope: %s", string(data))
	}
	if out.Grant.PersonName != "Ana" || out.Grant.Discipline != "musculacion" {
		t.Fatalf("unexpected grant: %+v", out.Grant)
	}
	if out.Grant.RemainingCredits == nil || *out.Grant.RemainingCredits != 9 {
		t.Fatalf("expected 9 credits left: %+v", out.Grant)
	}
	if out.Options != nil || out.Denial != nil {
		t.Fatalf("granted envelope must not carry options or denial")
	}
}

func TestCheckInDeniedEnvelope(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/check-in", map[string]any{
		"credential": "9999",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("denials are decisions, not HTTP errors; status %d: %s", res.StatusCode, string(data))
	}
	var out CheckInResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Decision != "denied" || out.Denial == nil {
		t.Fatalf("expected denied envelope: %s", string(data))
	}
	if out.Denial.Reason != string(engine.ReasonPersonNotFound) || out.Denial.Message == "" {
		t.Fatalf("unexpected denial: %+v", out.Denial)
	}
}

func TestCheckInSelectionRoundTrip(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	p, _ := seedMember(t, srv, 1042, "musculacion", false, 10)
	ctx := context.Background()
	r := srv.Engine.Repo
	pilates := domain.Discipline{ID: uuid.New().String(), Name: "pilates"}
	if err := r.InsertDiscipline(ctx, pilates); err != nil {
		t.Fatal(err)
	}
	pilatesPlan := domain.Plan{ID: uuid.New().String(), Name: "pilates plan", DisciplineID: pilates.ID, ValidDays: 30}
	if err := r.InsertPlan(ctx, pilatesPlan); err != nil {
		t.Fatal(err)
	}
	if err := r.InsertMembership(ctx, domain.Membership{
		ID: uuid.New().String(), PersonID: p.ID, PlanID: pilatesPlan.ID,
		DisciplineID: pilates.ID, IsUnlimited: true, Status: domain.MembershipActive,
		ExpiresAt: testNow.AddDate(0, 1, 0).Format(time.RFC3339),
		CreatedAt: testNow.Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/check-in", map[string]any{
		"credential": "1042",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var out CheckInResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Decision != "selection_required" || len(out.Options) != 2 {
		t.Fatalf("expected 2 options: %s", string(data))
	}

	res2, data2 := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/check-in", map[string]any{
		"credential":    "1042",
		"discipline_id": out.Options[0].DisciplineID,
	}, nil)
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("follow-up status %d: %s", res2.StatusCode, string(data2))
	}
	var out2 CheckInResponse
	if err := json.Unmarshal(data2, &out2); err != nil {
		t.Fatalf("unmarshal follow-up: %v", err)
	}
	if out2.Decision != "granted" {
		t.Fatalf("follow-up did not grant: %s", string(data2))
	}
}

func TestCheckInMissingCredential(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/check-in", map[string]any{}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestMemberTokenCheckIn(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	p, _ := seedMember(t, srv, 1042, "musculacion", false, 10)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tokens", map[string]any{
		"person_id": p.ID,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("issue token status %d: %s", res.StatusCode, string(data))
	}
	var issued IssueTokenResponse
	if err := json.Unmarshal(data, &issued); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}

	res2, data2 := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/check-in", map[string]any{
		"credential": issued.Token,
	}, nil)
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("check-in status %d: %s", res2.StatusCode, string(data2))
	}
	var out CheckInResponse
	if err := json.Unmarshal(data2, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Decision != "granted" {
		t.Fatalf("token check-in did not grant: %s", string(data2))
	}
}

func TestAdminCreatePersonAndCheckIn(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/persons", map[string]any{
		"name": "Bruno", "code": 2001,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create person status %d: %s", res.StatusCode, string(data))
	}
	var person domain.Person
	if err := json.Unmarshal(data, &person); err != nil {
		t.Fatalf("unmarshal person: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/disciplines", map[string]any{
		"name": "musculacion",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create discipline status %d: %s", res.StatusCode, string(data))
	}
	var disc domain.Discipline
	_ = json.Unmarshal(data, &disc)
	if disc.RequiresReservation {
		t.Fatalf("requires_reservation should default to false when omitted")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/disciplines", map[string]any{
		"name": "yoga", "requires_reservation": true,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create discipline status %d: %s", res.StatusCode, string(data))
	}
	var yoga domain.Discipline
	_ = json.Unmarshal(data, &yoga)
	if !yoga.RequiresReservation {
		t.Fatalf("requires_reservation not persisted: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/plans", map[string]any{
		"name": "gym.monthly", "discipline_id": disc.ID, "valid_days": 30,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create plan status %d: %s", res.StatusCode, string(data))
	}
	var plan domain.Plan
	_ = json.Unmarshal(data, &plan)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/memberships", map[string]any{
		"person_id": person.ID, "plan_id": plan.ID,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create membership status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/check-in", map[string]any{
		"credential": "2001",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("check-in status %d: %s", res.StatusCode, string(data))
	}
	var out CheckInResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Decision != "granted" {
		t.Fatalf("expected granted: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/access-log", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("access-log status %d: %s", res.StatusCode, string(data))
	}
	var entries []domain.AccessLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal access log: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != "granted" {
		t.Fatalf("expected one granted audit row: %s", string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, AuthConfig{StaffSecret: "staff-secret"})

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/persons", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	// Health stays open for probes.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", res.StatusCode)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t, AuthConfig{StaffSecret: "staff-secret"})
	rawKey := "kiosk-key-1"
	if err := srv.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:        uuid.New().String(),
		Name:      "front desk",
		KeyHash:   repo.HashAPIKey(rawKey),
		CreatedAt: testNow.Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/persons", nil, map[string]string{
		"X-Api-Key": rawKey,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/persons", nil, map[string]string{
		"X-Api-Key": "wrong",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad key, got %d", res.StatusCode)
	}
}
