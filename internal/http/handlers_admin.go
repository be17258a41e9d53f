package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"sangha/internal/core"
	applog "sangha/internal/log"
	"sangha/internal/services"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "admin access not configured"})
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	token, err := s.deps.Sessions.Login(body.Email, body.Password)
	if err != nil {
		slog.WarnContext(r.Context(), "Login rejected",
			applog.FieldComponent, applog.ComponentAuth, "email", body.Email)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Members.

type memberBody struct {
	MemberCode string `json:"memberCode"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Phone      string `json:"phone"`
	JoinMonth  string `json:"joinMonth"`
	MonthlyDue int64  `json:"monthlyDue"`
}

func (b memberBody) input() services.MemberInput {
	return services.MemberInput{
		MemberCode: b.MemberCode,
		Name:       b.Name,
		Gender:     b.Gender,
		Phone:      b.Phone,
		JoinMonth:  b.JoinMonth,
		MonthlyDue: b.MonthlyDue,
	}
}

func (s *Server) handleMemberList(w http.ResponseWriter, r *http.Request) {
	members, err := s.deps.Members.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}

func (s *Server) handleMemberSave(w http.ResponseWriter, r *http.Request) {
	var body memberBody
	if !decodeBody(w, r, &body) {
		return
	}
	code, err := s.deps.Members.Save(r.Context(), body.input())
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	writeJSON(w, http.StatusCreated, map[string]string{"memberCode": code})
}

func (s *Server) handleMemberUpdate(w http.ResponseWriter, r *http.Request) {
	var body memberBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.deps.Members.UpdateByKey(r.Context(), r.PathValue("key"), body.input()); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	transferred, err := s.deps.Members.Delete(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":          key,
		"transferredCents": transferred,
	})
}

// Payments.

type paymentBody struct {
	MemberCode  string `json:"memberCode"`
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
	PaidAtMonth string `json:"paidAtMonth"`
	Note        string `json:"note"`
}

func (b paymentBody) input() services.PaymentInput {
	return services.PaymentInput{
		MemberCode:  b.MemberCode,
		Amount:      b.Amount,
		Method:      b.Method,
		PaidAtMonth: b.PaidAtMonth,
		Note:        b.Note,
	}
}

func (s *Server) handlePaymentList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	payments, err := s.deps.Payments.List(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payments": payments,
		"count":    len(payments),
	})
}

func (s *Server) handlePaymentAdd(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if !decodeBody(w, r, &body) {
		return
	}
	key, err := s.deps.Payments.Add(r.Context(), body.input())
	if err != nil {
		writeError(w, err)
		return
	}
	s.audit.LogPaymentRecorded(r.Context(), body.MemberCode, body.Amount, body.PaidAtMonth, body.Method, key)
	s.invalidateStats()
	writeJSON(w, http.StatusCreated, map[string]string{"id": key})
}

func (s *Server) handlePaymentUpdate(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.deps.Payments.Update(r.Context(), r.PathValue("key"), body.input()); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePaymentDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Payments.Delete(r.Context(), r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePaymentArchive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.deps.Payments.Archive(r.Context(), r.PathValue("key"), body.Reason); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

// Transactions.

type transactionBody struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

func (b transactionBody) tx() core.Transaction {
	return core.Transaction{
		Type:   core.TransactionType(b.Type),
		Title:  b.Title,
		Amount: b.Amount,
		Note:   b.Note,
	}
}

func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		writeBadRequest(w, "type must be income or expense")
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), typ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (s *Server) handleTransactionAdd(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if !decodeBody(w, r, &body) {
		return
	}
	key, err := s.deps.Transactions.Add(r.Context(), body.tx())
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	writeJSON(w, http.StatusCreated, map[string]string{"id": key})
}

func (s *Server) handleTransactionUpdate(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.deps.Transactions.Update(r.Context(), r.PathValue("key"), body.tx()); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

// Import and refresh.

// handleImport prefers handing the import to the background worker; with
// no queue configured it runs inline and returns the summary directly.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	switch {
	case s.deps.ImportQueue != nil:
		if err := s.deps.ImportQueue.PublishImport(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Failed to queue import", "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case s.deps.Importer != nil:
		summary, err := s.deps.Importer.Run(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Import failed", "error", err)
			writeError(w, err)
			return
		}
		s.invalidateStats()
		writeJSON(w, http.StatusOK, summary)
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "import source not configured"})
	}
}

// handleFullRefresh recalculates every member and the global rollup.
func (s *Server) handleFullRefresh(w http.ResponseWriter, r *http.Request) {
	members, err := s.deps.Members.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	codes := make([]string, 0, len(members))
	for _, m := range members {
		codes = append(codes, m.MemberCode)
	}
	if err := s.deps.Ledger.RefreshAfterMutation(r.Context(), codes...); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateStats()
	writeJSON(w, http.StatusOK, map[string]int{"refreshedMembers": len(codes)})
}
