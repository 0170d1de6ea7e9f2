package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/hr"
	"hrms.org/internal/obs"
)

const serviceName = "hrms-api"

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the backing stores. Nil members are skipped.
type ReadyProbe struct {
	Postgres Pinger
	Redis    Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	var errs []error
	if rp.Postgres != nil {
		if err := rp.Postgres.Ping(ctx); err != nil {
			errs = append(errs, errors.New("postgres unavailable"))
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx); err != nil {
			errs = append(errs, errors.New("redis unavailable"))
		}
	}
	return errors.Join(errs...)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Validator  *auth.Validator
	Auth       *auth.Service
	HR         *hr.Service
	Audit      *audit.Sink
	AuditLog   audit.Store
	Ready      ReadyProbe
	Logger     *zap.Logger
	Production bool
	Version    string

	LoginBurst     int
	LoginPerSecond int
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	validator  *auth.Validator
	auth       *auth.Service
	hr         *hr.Service
	sink       *audit.Sink
	auditLog   audit.Store
	ready      ReadyProbe
	log        *zap.Logger
	production bool
	version    string
	origins    []string
	maxBody    int64
	login      *ipLimiter
}

func New(d Deps) *API {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	burst, perSecond := d.LoginBurst, d.LoginPerSecond
	if burst <= 0 {
		burst = 10
	}
	if perSecond <= 0 {
		perSecond = 2
	}
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	a := &API{
		mux:        http.NewServeMux(),
		validator:  d.Validator,
		auth:       d.Auth,
		hr:         d.HR,
		sink:       d.Audit,
		auditLog:   d.AuditLog,
		ready:      d.Ready,
		log:        log,
		production: d.Production,
		version:    d.Version,
		origins:    d.AllowedOrigins,
		maxBody:    maxBody,
		login:      newIPLimiter(burst, perSecond),
	}
	a.routes()
	return a
}

// Handler wraps the mux with the shared middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h, a.origins)
	h = SecurityHeaders(h)
	h = Recovery(h, a.log, a.production)
	h = Logging(h, a.log)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
