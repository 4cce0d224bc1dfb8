package http

import (
	"net/http"
	"strconv"

	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[ruleRequest](r, s.validate, false)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule, err := s.svc.CreateRule(r.Context(), core.Rule{
		Pattern:  req.Pattern,
		Field:    core.MatchField(req.Field),
		Category: req.Category,
		Bucket:   req.Bucket,
		Priority: req.Priority,
		Enabled:  enabled,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Rule created",
		log.FieldRuleID, rule.ID, log.FieldBucket, rule.Bucket)
	NewJSONResponse().Status(http.StatusCreated).Body(toRuleResponse(rule)).Write(w)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.ListRules(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(mapSlice(rules, toRuleResponse)).Write(w)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		UnprocessableEntityError("id must be a positive integer").Write(w)
		return
	}
	if err := s.svc.DeleteRule(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Rule deleted", log.FieldRuleID, id)
	NewJSONResponse().Body(map[string]bool{"deleted": true}).Write(w)
}

// handleApplyRules reclassifies stored transactions. The body is optional.
func (s *Server) handleApplyRules(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[applyRulesRequest](r, s.validate, true)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	from, err := optionalDate("from", req.From)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	n, err := s.svc.ApplyRules(r.Context(), req.AccountID, from)
	if err != nil {
		s.fail(w, r, log.OpApplyRules, err)
		return
	}
	s.invalidateReports()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Rules applied", log.FieldProcessed, n)
	NewJSONResponse().Body(map[string]int{"processed": n}).Write(w)
}
