package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sangha/internal/core"
	"sangha/internal/services"
	"sangha/internal/store"
)

const statsCacheKey = "global"

// statsResponse is the public snapshot: the persisted global stats plus
// the running month and its collection so far.
type statsResponse struct {
	core.GlobalStats
	RunningMonth           string `json:"runningMonth"`
	RunningMonthCollection int64  `json:"runningMonthCollection"`
}

func (s *Server) currentStats(r *http.Request) (statsResponse, error) {
	ctx := r.Context()
	stats, err := s.deps.Ledger.GlobalStats(ctx)
	if err != nil {
		return statsResponse{}, err
	}
	month, collected, err := s.deps.Search.RunningMonthCollection(ctx)
	if err != nil {
		return statsResponse{}, err
	}
	return statsResponse{
		GlobalStats:            stats,
		RunningMonth:           string(month),
		RunningMonthCollection: collected,
	}, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.statsCache.Get(statsCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	resp, err := s.currentStats(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load stats", "error", err)
		writeError(w, err)
		return
	}
	s.statsCache.Set(statsCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMemberSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	cacheKey := "q:" + strings.ToLower(q)

	members, ok := s.searchCache.Get(cacheKey)
	if !ok {
		var err error
		members, err = s.deps.Search.Members(r.Context(), q)
		if err != nil {
			slog.ErrorContext(r.Context(), "Member search failed", "error", err, "query", q)
			writeError(w, err)
			return
		}
		s.searchCache.Set(cacheKey, members)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}

func (s *Server) handleRunningCollection(w http.ResponseWriter, r *http.Request) {
	month, collected, err := s.deps.Search.RunningMonthCollection(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":     string(month),
		"collected": collected,
	})
}

type joinRequestBody struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Gender     string `json:"gender"`
	JoinMonth  string `json:"joinMonth"`
	MonthlyDue int64  `json:"monthlyDue"`
	Address    string `json:"address"`
	Remarks    string `json:"remarks"`
}

func (s *Server) handleJoinRequest(w http.ResponseWriter, r *http.Request) {
	var body joinRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	key, err := s.deps.Intake.SubmitJoinRequest(r.Context(), services.JoinRequest{
		Name:       body.Name,
		Phone:      body.Phone,
		Gender:     body.Gender,
		JoinMonth:  body.JoinMonth,
		MonthlyDue: body.MonthlyDue,
		Address:    body.Address,
		Remarks:    body.Remarks,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": key})
}

type donationBody struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Amount  int64  `json:"amount"`
	Purpose string `json:"purpose"`
}

func (s *Server) handleDonation(w http.ResponseWriter, r *http.Request) {
	var body donationBody
	if !decodeBody(w, r, &body) {
		return
	}
	key, err := s.deps.Intake.SubmitDonation(r.Context(), services.Donation{
		Name:    body.Name,
		Phone:   body.Phone,
		Amount:  body.Amount,
		Purpose: body.Purpose,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": key})
}

type contactBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var body contactBody
	if !decodeBody(w, r, &body) {
		return
	}
	key, err := s.deps.Intake.SubmitContactMessage(r.Context(), services.ContactMessage{
		Name:    body.Name,
		Email:   body.Email,
		Message: body.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": key})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VisitorID string `json:"visitorId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.deps.Presence.Heartbeat(r.Context(), body.VisitorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePresenceCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Presence.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"online": n})
}

// handleStatsStream pushes the stats snapshot over SSE: once on connect,
// then again whenever the stats document changes. Slow consumers miss
// intermediate updates rather than block the store's notifier.
func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeBadRequest(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	changes := make(chan struct{}, 1)
	unsubscribe := s.deps.Store.Subscribe(store.Stats, func(ev store.Event) {
		if ev.Key != store.GlobalStatsKey {
			return
		}
		select {
		case changes <- struct{}{}:
		default: // a refresh is already pending
		}
	})
	defer unsubscribe()

	send := func() bool {
		resp, err := s.currentStats(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Stats stream snapshot failed", "error", err)
			return true
		}
		if err := writeSSE(w, "stats", resp); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changes:
			if !send() {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
