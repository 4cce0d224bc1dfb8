package http

import (
	"net/http"

	"ledger/internal/log"
)

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := requiredInt(q, "year")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	month, err := requiredInt(q, "month")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	accountID, err := optionalInt64(q, "account_id")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	rows, err := s.monthlyReport(r.Context(), year, month, accountID)
	if err != nil {
		s.fail(w, r, log.OpReport, err)
		return
	}
	NewJSONResponse().Body(mapSlice(rows, toReportRowResponse)).Write(w)
}

// handleExportMonthlyReport writes one month's report to the configured
// spreadsheet and echoes the exported rows.
func (s *Server) handleExportMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		ServiceUnavailableError("report export is not configured").Write(w)
		return
	}
	req, err := bindAndValidate[exportRequest](r, s.validate, false)
	if err != nil {
		bindError(err).Write(w)
		return
	}

	ctx := r.Context()
	rows, err := s.monthlyReport(ctx, req.Year, req.Month, req.AccountID)
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	if err := s.exporter.ExportMonthly(ctx, req.Year, req.Month, rows); err != nil {
		log.NewStructuredLogger(log.FromContext(ctx).WithComponent(log.ComponentExport)).LogError(ctx,
			"Report export failed", err, log.OpExport, log.NewFields().WithPeriod(req.Year, req.Month))
		ErrorResponse(http.StatusBadGateway, "report export failed").Write(w)
		return
	}

	s.metrics.exports.Add(1)
	log.FromContext(ctx).WithComponent(log.ComponentExport).InfoContext(ctx, "Report exported",
		log.NewFields().WithPeriod(req.Year, req.Month).WithOperation(log.OpExport).ToSlice()...)
	NewJSONResponse().Body(map[string]any{
		"year":  req.Year,
		"month": req.Month,
		"rows":  mapSlice(rows, toReportRowResponse),
	}).Write(w)
}
