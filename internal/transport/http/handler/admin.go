package handler

import (
	"context"
	"net/http"
)

type sweepRunner interface {
	RunAll(ctx context.Context) map[string]int
}

// AdminHandler exposes maintenance operations, guarded by the admin role at
// the router.
type AdminHandler struct {
	sweeps sweepRunner
}

func NewAdminHandler(sweeps sweepRunner) *AdminHandler { return &AdminHandler{sweeps: sweeps} }

// RunCleanup triggers every retention sweep immediately and returns the
// number of records each one removed.
func (h *AdminHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sweeps.RunAll(r.Context()))
}
