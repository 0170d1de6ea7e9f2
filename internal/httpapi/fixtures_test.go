package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
	"hrms.org/internal/session"
)

const testPassword = "password1"

// credentials is an in-memory auth.CredentialStore.
type credentials struct {
	mu       sync.Mutex
	accounts []auth.Account
}

func (c *credentials) match(fn func(auth.Account) bool) (auth.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.accounts {
		if fn(a) {
			return a, nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (c *credentials) FindTenantUser(_ context.Context, identifier string) (auth.Account, error) {
	return c.match(func(a auth.Account) bool {
		return a.Kind == auth.KindTenantUser && (a.Username == identifier || strings.EqualFold(a.Email, identifier))
	})
}

func (c *credentials) FindSuperAdmin(_ context.Context, email string) (auth.Account, error) {
	return c.match(func(a auth.Account) bool { return a.Kind == auth.KindSuperAdmin && a.Email == email })
}

func (c *credentials) FindAccount(_ context.Context, kind auth.Kind, id int64) (auth.Account, error) {
	return c.match(func(a auth.Account) bool { return a.Kind == kind && a.ID == id })
}

func (c *credentials) UpdatePasswordHash(_ context.Context, kind auth.Kind, id int64, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.accounts {
		if a.Kind == kind && a.ID == id {
			c.accounts[i].PasswordHash = hash
		}
	}
	return nil
}

func (c *credentials) TouchLastLogin(context.Context, auth.Kind, int64, time.Time) error { return nil }

// hrStore is an in-memory hr.Store honoring tenant scoping.
type hrStore struct {
	mu        sync.Mutex
	tenants   []hr.Tenant
	employees []hr.Employee
	requests  map[int64]hr.LeaveRequest
	balances  map[int64]hr.LeaveBalance
}

func (s *hrStore) CreateTenantWithAdmin(_ context.Context, t hr.Tenant, _ hr.NewAdmin) (hr.Provisioned, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if existing.Slug == t.Slug {
			return hr.Provisioned{}, hr.ErrConflict
		}
	}
	t.ID = int64(len(s.tenants)+1) * 100
	s.tenants = append(s.tenants, t)
	return hr.Provisioned{Tenant: t, AdminUserID: t.ID + 1}, nil
}

func (s *hrStore) ListTenants(context.Context) ([]hr.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hr.Tenant(nil), s.tenants...), nil
}

func (s *hrStore) ListEmployees(_ context.Context, tenantID int64) ([]hr.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []hr.Employee
	for _, e := range s.employees {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *hrStore) GetEmployee(_ context.Context, tenantID, id int64) (hr.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.employees {
		if e.TenantID == tenantID && e.ID == id {
			return e, nil
		}
	}
	return hr.Employee{}, hr.ErrNotFound
}

func (s *hrStore) DecideLeave(_ context.Context, tenantID int64, d hr.Decision) (hr.DecisionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[d.RequestID]
	if !ok || req.TenantID != tenantID {
		return hr.DecisionResult{}, hr.ErrNotFound
	}
	after, bal, err := hr.ApplyDecision(req, s.balances[req.EmployeeID], d)
	if err != nil {
		return hr.DecisionResult{}, err
	}
	s.requests[req.ID] = after
	s.balances[req.EmployeeID] = bal
	return hr.DecisionResult{Before: req, After: after, Balance: bal}, nil
}

// auditStore is an in-memory audit.Store; setting failWith breaks Append.
type auditStore struct {
	mu       sync.Mutex
	entries  []audit.Entry
	failWith error
}

func (s *auditStore) Append(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *auditStore) List(_ context.Context, tenantID int64, f audit.Filter) ([]audit.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.TenantID == nil || *e.TenantID != tenantID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (s *auditStore) Get(_ context.Context, tenantID int64, id string) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id && e.TenantID != nil && *e.TenantID == tenantID {
			return e, nil
		}
	}
	return audit.Entry{}, audit.ErrNotFound
}

func (s *auditStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

// sessionStore wraps MemoryStore so lookups can be made to fail.
type sessionStore struct {
	*session.MemoryStore
	mu      sync.Mutex
	lookErr error
}

func (s *sessionStore) State(ctx context.Context, ns auth.Namespace, token string) (auth.SessionState, error) {
	s.mu.Lock()
	err := s.lookErr
	s.mu.Unlock()
	if err != nil {
		return auth.SessionAbsent, err
	}
	return s.MemoryStore.State(ctx, ns, token)
}

func (s *sessionStore) failLookups(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookErr = err
}

type testEnv struct {
	*apiClient
	audit    *auditStore
	hr       *hrStore
	sessions *sessionStore
	signer   *auth.TokenSigner
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	creds := &credentials{accounts: []auth.Account{
		{ID: 1, Kind: auth.KindSuperAdmin, Email: "root@hrms.test", PasswordHash: string(hash), Active: true},
		{ID: 100, Kind: auth.KindTenantUser, TenantID: 10, Email: "alice@acme.test", Username: "alice", Role: auth.RoleAdmin, PasswordHash: string(hash), Active: true},
		{ID: 101, Kind: auth.KindTenantUser, TenantID: 10, Email: "bob@acme.test", Username: "bob", Role: auth.RoleEmployee, PasswordHash: testPassword, Active: true},
		{ID: 102, Kind: auth.KindTenantUser, TenantID: 10, Email: "mia@acme.test", Username: "mia", Role: auth.RoleManager, PasswordHash: string(hash), Active: true},
		{ID: 200, Kind: auth.KindTenantUser, TenantID: 20, Email: "carol@globex.test", Username: "carol", Role: auth.RoleHR, PasswordHash: string(hash), Active: true},
	}}
	uid := func(v int64) *int64 { return &v }
	hrs := &hrStore{
		tenants: []hr.Tenant{
			{ID: 10, Name: "Acme", Slug: "acme", Active: true},
			{ID: 20, Name: "Globex", Slug: "globex", Active: true},
		},
		employees: []hr.Employee{
			{ID: 1, TenantID: 10, UserID: uid(100), EmployeeCode: "EMP-0001", FirstName: "Alice", Status: "ACTIVE"},
			{ID: 2, TenantID: 10, UserID: uid(101), EmployeeCode: "EMP-0002", FirstName: "Bob", Status: "ACTIVE"},
			{ID: 3, TenantID: 20, UserID: uid(200), EmployeeCode: "EMP-0001", FirstName: "Carol", Status: "ACTIVE"},
		},
		requests: map[int64]hr.LeaveRequest{
			7: {ID: 7, TenantID: 10, EmployeeID: 2, LeaveTypeID: 1, Days: 2, Status: hr.LeavePending},
			8: {ID: 8, TenantID: 20, EmployeeID: 3, LeaveTypeID: 1, Days: 1, Status: hr.LeavePending},
		},
		balances: map[int64]hr.LeaveBalance{
			2: {TenantID: 10, EmployeeID: 2, LeaveTypeID: 1, Year: 2026, Total: 20, Pending: 2},
			3: {TenantID: 20, EmployeeID: 3, LeaveTypeID: 1, Year: 2026, Total: 20, Pending: 1},
		},
	}
	audits := &auditStore{}
	sessions := &sessionStore{MemoryStore: session.NewMemoryStore()}

	signer, err := auth.NewTokenSigner("test-secret-test-secret-test-secret", auth.WithTokenTTL(time.Hour))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	authSvc, err := auth.NewService(creds, sessions, signer, auth.WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	validator, err := auth.NewValidator(signer, sessions)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	api := New(Deps{
		Validator:      validator,
		Auth:           authSvc,
		HR:             hr.NewService(hrs, auth.NewPasswordHasher(bcrypt.MinCost), nil),
		Audit:          audit.NewSink(audits, zap.NewNop()),
		AuditLog:       audits,
		Ready:          ReadyProbe{Redis: sessions},
		Version:        "test",
		LoginBurst:     100,
		LoginPerSecond: 100,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{
		apiClient: &apiClient{baseURL: srv.URL, client: srv.Client(), t: t},
		audit:     audits,
		hr:        hrs,
		sessions:  sessions,
		signer:    signer,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, token string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, token)
}

func (c *apiClient) login(identifier string) string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": identifier, "password": testPassword}, "")
	out := decode[auth.Session](c.t, resp, http.StatusOK)
	if out.Data.Token == "" {
		c.t.Fatalf("login %s: empty token", identifier)
	}
	return out.Data.Token
}

func (c *apiClient) superAdminLogin() string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/super-admin/login", map[string]string{"email": "root@hrms.test", "password": testPassword}, "")
	return decode[auth.Session](c.t, resp, http.StatusOK).Data.Token
}

type response[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

func decode[T any](t *testing.T, resp *http.Response, wantStatus int) response[T] {
	t.Helper()
	defer resp.Body.Close()
	var out response[T]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d (message %q)", resp.StatusCode, wantStatus, out.Message)
	}
	return out
}

func expectError(t *testing.T, resp *http.Response, wantStatus int, wantMessage string) {
	t.Helper()
	out := decode[json.RawMessage](t, resp, wantStatus)
	if out.Success {
		t.Fatalf("expected success=false")
	}
	if out.Message != wantMessage {
		t.Fatalf("message = %q, want %q", out.Message, wantMessage)
	}
}

var errBackend = errors.New("backend down")
