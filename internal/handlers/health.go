package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/domain"
	"github.com/linguadesk/translator/internal/platform/httpx"
	"github.com/linguadesk/translator/internal/platform/requestctx"
	"github.com/linguadesk/translator/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthSystemService sets the service used by /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthClock overrides the clock.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers builds probe handlers. The start time defaults to construction time.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthzResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type readyzCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyzResponse struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version,omitempty"`
	CommitSHA   string                 `json:"commitSha,omitempty"`
	Environment string                 `json:"environment,omitempty"`
	Uptime      string                 `json:"uptime,omitempty"`
	GeneratedAt string                 `json:"generatedAt,omitempty"`
	Checks      map[string]readyzCheck `json:"checks"`
	Details     []string               `json:"details,omitempty"`
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	httpx.WriteJSON(w, http.StatusOK, healthzResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	})
}

// Readyz aggregates dependency checks and returns 503 unless every check is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}
	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Error("readiness check failed", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("unavailable", "readiness check failed", http.StatusServiceUnavailable))
		return
	}

	resp := readyzResponse{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Checks:      make(map[string]readyzCheck, len(report.Checks)),
	}
	if report.Uptime > 0 {
		resp.Uptime = report.Uptime.Round(time.Second).String()
	}
	if !report.GeneratedAt.IsZero() {
		resp.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		entry := readyzCheck{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if !check.CheckedAt.IsZero() {
			entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		resp.Checks[name] = entry
		if check.Status != domain.HealthStatusOK {
			reason := strings.TrimSpace(check.Error)
			if reason == "" {
				reason = check.Status
			}
			resp.Details = append(resp.Details, name+": "+reason)
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}
