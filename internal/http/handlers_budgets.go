package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[budgetRequest](r, s.validate, false)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	threshold := core.DefaultAlertThreshold
	if req.AlertThreshold != nil {
		threshold = *req.AlertThreshold
	}
	b, err := s.svc.CreateBudget(r.Context(), core.Budget{
		Bucket:         req.Bucket,
		MonthlyLimit:   req.MonthlyLimit,
		Currency:       req.Currency,
		AlertThreshold: threshold,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.invalidateReports()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget created",
		log.FieldBucket, b.Bucket, log.FieldTotal, b.MonthlyLimit.StringFixed(2))
	NewJSONResponse().Status(http.StatusCreated).Body(toBudgetResponse(b)).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.ListBudgets(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(mapSlice(budgets, toBudgetResponse)).Write(w)
}
