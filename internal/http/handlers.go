package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ledger/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady checks the store and the templates.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.svc.Ready(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["store"] = "failed"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["report_cache_entries"] = strconv.Itoa(s.reports.Size())

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_failed_total", "counter", "HTTP requests answered with 5xx", traceMetrics.FailedRequests)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", limitMetrics.TotalHits)
	metric("rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests matching probe patterns", securityMetrics.SuspiciousRequests)
	metric("transactions_ingested_total", "counter", "Transactions inserted through the API", s.metrics.ingested.Load())
	metric("report_cache_hits_total", "counter", "Monthly reports served from cache", s.metrics.reportHits.Load())
	metric("report_cache_misses_total", "counter", "Monthly reports computed", s.metrics.reportMisses.Load())
	metric("report_cache_entries", "gauge", "Cached monthly reports", int64(s.reports.Size()))
	metric("report_exports_total", "counter", "Monthly reports exported to Sheets", s.metrics.exports.Load())
	metric("uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
}

// handleDemo renders the read-only HTML overview.
func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	sum, err := s.svc.Summary(ctx)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "demo.html", newDemoPage(sum)); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentTemplate).ErrorContext(ctx, "Template render failed",
			log.FieldError, err, log.FieldOperation, log.OpRender)
		InternalServerError("internal error").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
