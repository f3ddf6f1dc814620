// Package health answers liveness probes and the optional deep checks
// behind them: Presenter reachability and tunnel round-trip.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
)

// Status grades one check or the whole response.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// probeTimeout bounds every deep probe.
const probeTimeout = 2 * time.Second

// CheckResult is one component's verdict.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TunnelResult is the deep tunnel probe payload.
type TunnelResult struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// Response is the /health body. Checks appear with ?verbose=true,
// Tunnel with ?check=tunnel.
type Response struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Tunnel    *TunnelResult          `json:"tunnel,omitempty"`
}

// Checker is one named component probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager aggregates checkers and serves the health endpoint.
type Manager struct {
	version   string
	tunnelURL string
	client    *http.Client
	checkers  []Checker
}

// NewManager builds a health manager. tunnelURL may be empty; the
// tunnel probe then reports unreachable with a hint.
func NewManager(version, tunnelURL string) *Manager {
	return &Manager{
		version:   version,
		tunnelURL: tunnelURL,
		client:    &http.Client{Timeout: probeTimeout},
	}
}

// RegisterChecker adds a component probe. Not safe after serving starts.
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health runs the liveness check, with component detail when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) Response {
	resp := Response{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
	}

	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult, len(m.checkers))
		for _, checker := range m.checkers {
			result := checker.Check(ctx)
			resp.Checks[checker.Name()] = result
			switch result.Status {
			case StatusUnhealthy:
				resp.Status = StatusUnhealthy
			case StatusDegraded:
				if resp.Status == StatusHealthy {
					resp.Status = StatusDegraded
				}
			}
		}
	}
	return resp
}

// ProbeTunnel round-trips the public tunnel URL and reports latency.
func (m *Manager) ProbeTunnel(ctx context.Context) TunnelResult {
	if m.tunnelURL == "" {
		return TunnelResult{Reachable: false, Error: "no tunnel configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.tunnelURL+"/health", nil)
	if err != nil {
		return TunnelResult{Reachable: false, Error: err.Error()}
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return TunnelResult{Reachable: false, LatencyMS: latency, Error: err.Error()}
	}
	defer resp.Body.Close()

	return TunnelResult{Reachable: resp.StatusCode < 500, LatencyMS: latency}
}

// ServeHealth answers GET /health. Liveness is always 200; deep checks
// ride along in the body.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	resp := m.Health(r.Context(), r.URL.Query().Get("verbose") == "true")
	if r.URL.Query().Get("check") == "tunnel" {
		tunnel := m.ProbeTunnel(r.Context())
		resp.Tunnel = &tunnel
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("failed to encode health response")
	}
}

// PresenterChecker probes the Presenter API via Version().
type PresenterChecker struct {
	Client interface {
		Version(ctx context.Context) (propresenter.VersionInfo, error)
	}
}

func (c PresenterChecker) Name() string { return "propresenter" }

func (c PresenterChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := c.Client.Version(ctx)
	if err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error(), Message: "ProPresenter unreachable"}
	}
	return CheckResult{Status: StatusHealthy, Message: "ProPresenter " + info.Version}
}
