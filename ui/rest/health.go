package rest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck comprueba una dependencia; nil significa sana.
type HealthCheck func(ctx context.Context) error

type HealthOptions struct {
	Version   string
	ServerID  string
	StartedAt time.Time
	Checks    map[string]HealthCheck
	Settings  map[string]any
	Pool      PoolStatsProvider
	// Pending devuelve las respuestas del agente a la espera del debounce.
	Pending func() int
}

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type HealthReport struct {
	Healthy        bool           `json:"healthy"`
	Version        string         `json:"version,omitempty"`
	ServerID       string         `json:"server_id,omitempty"`
	Uptime         string         `json:"uptime"`
	Checks         []CheckResult  `json:"checks"`
	QueuedJobs     int            `json:"queued_jobs"`
	ProcessedJobs  string         `json:"processed_jobs"`
	PendingReplies int            `json:"pending_replies"`
	Settings       map[string]any `json:"settings,omitempty"`
}

type Health struct {
	opts HealthOptions
}

func InitRestHealth(app fiber.Router, opts HealthOptions) Health {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	handler := Health{opts: opts}
	app.Get("/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	report := h.Check(c.UserContext())
	if !report.Healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "One or more dependencies are unhealthy",
			Results: report,
		})
	}
	return success(c, "Health status retrieved", report)
}

// Check ejecuta todas las comprobaciones en paralelo.
func (h *Health) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make([]CheckResult, 0, len(h.opts.Checks))
	)
	for name, check := range h.opts.Checks {
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			res := CheckResult{Name: name, Healthy: err == nil, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Error = err.Error()
				logrus.WithError(err).Warnf("[HEALTH] %s check failed", name)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := HealthReport{
		Healthy:       err == nil,
		Version:       h.opts.Version,
		ServerID:      h.opts.ServerID,
		Uptime:        strings.TrimSpace(humanize.RelTime(h.opts.StartedAt, time.Now(), "", "")),
		Checks:        results,
		ProcessedJobs: "0",
		Settings:      h.opts.Settings,
	}
	if h.opts.Pool != nil {
		stats := h.opts.Pool.Stats()
		report.QueuedJobs = stats.QueuedJobs
		report.ProcessedJobs = humanize.Comma(stats.TotalProcessed)
	}
	if h.opts.Pending != nil {
		report.PendingReplies = h.opts.Pending()
	}
	return report
}
