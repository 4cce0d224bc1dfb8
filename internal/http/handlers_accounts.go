package http

import (
	"net/http"

	"ledger/internal/log"
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[accountRequest](r, s.validate, false)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	a, err := s.svc.CreateAccount(r.Context(), req.Name, req.Provider, req.Institution)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account created",
		log.NewFields().WithAccount(a.ID).WithOperation(log.OpCreate).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(toAccountResponse(a)).Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(mapSlice(accounts, toAccountResponse)).Write(w)
}

// Ingestion

func (s *Server) handleIngestMock(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[ingestMockRequest](r, s.validate, false)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	res, err := s.svc.IngestSample(r.Context(), req.AccountID)
	if err != nil {
		s.fail(w, r, log.OpIngest, err)
		return
	}
	s.ingested(r, req.AccountID, res.Inserted, res.Total)
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[ingestRequest](r, s.validate, false)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	res, err := s.svc.Ingest(r.Context(), req.AccountID, req.Transactions)
	if err != nil {
		s.fail(w, r, log.OpIngest, err)
		return
	}
	s.ingested(r, req.AccountID, res.Inserted, res.Total)
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) ingested(r *http.Request, accountID int64, inserted, total int) {
	if inserted > 0 {
		s.metrics.ingested.Add(int64(inserted))
		s.invalidateReports()
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogIngested(r.Context(), accountID, inserted, total)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	txns, err := s.svc.ListTransactions(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(mapSlice(txns, toTransactionResponse)).Write(w)
}

// Notion

func (s *Server) handleNotionSync(w http.ResponseWriter, r *http.Request) {
	req, err := bindAndValidate[notionSyncRequest](r, s.validate, true)
	if err != nil {
		bindError(err).Write(w)
		return
	}
	f, err := transactionFilter(req.AccountID, req.From, req.To)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	res, err := s.svc.SyncNotion(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpSync, err)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentNotion).InfoContext(r.Context(), "Notion sync finished",
		"created", res.Created, "updated", res.Updated)
	NewJSONResponse().Body(res).Write(w)
}
