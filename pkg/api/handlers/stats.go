package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/cntfs/pkg/stats"
)

// TransferSource exposes recorded transfers. *stats.History implements it.
type TransferSource interface {
	All() []stats.Transfer
	Report(username string) stats.Report
}

// StatsHandler serves transfer statistics.
type StatsHandler struct {
	source TransferSource
}

// NewStatsHandler creates a stats handler. source may be nil.
func NewStatsHandler(source TransferSource) *StatsHandler {
	return &StatsHandler{source: source}
}

// UserSummary is one row of the global stats view.
type UserSummary struct {
	Username string `json:"username"`
	stats.Summary
}

// GlobalStats is the response of GET /stats.
type GlobalStats struct {
	Summary stats.Summary `json:"summary"`
	Users   []UserSummary `json:"users"`
}

// Summary handles GET /stats: totals over every user, plus one summary per
// user sorted by name.
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var all []stats.Transfer
	if h.source != nil {
		all = h.source.All()
	}

	byUser := make(map[string][]stats.Transfer)
	for _, t := range all {
		byUser[t.Username] = append(byUser[t.Username], t)
	}

	users := make([]UserSummary, 0, len(byUser))
	for name, ts := range byUser {
		users = append(users, UserSummary{Username: name, Summary: stats.Summarize(ts)})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	writeJSON(w, http.StatusOK, okResponse(GlobalStats{
		Summary: stats.Summarize(all),
		Users:   users,
	}))
}

// User handles GET /stats/{username}.
func (h *StatsHandler) User(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if h.source == nil {
		writeJSON(w, http.StatusOK, okResponse(stats.NewReport(nil)))
		return
	}

	report := h.source.Report(username)
	if len(report.Transfers) == 0 {
		NotFound(w, "no transfers recorded for user")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(report))
}
