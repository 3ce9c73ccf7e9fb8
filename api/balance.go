package api

import (
	"errors"
	"net/http"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/shopspring/decimal"
)

// getBalance handles GET /projects/{projectID}/balance with a fresh
// recompute. The cached balance is never served here.
func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.balances.ComputeSnapshot(r.Context(), projectID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshot.Partial {
		writePartial(w, snapshot.Err(), snapshot)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"snapshot": snapshot})
}

type adjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// adjustBalance handles POST /projects/{projectID}/balance/adjust.
func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !decode(w, r, &req) {
		return
	}

	newBalance, err := h.balances.AdjustBalance(r.Context(), projectID(r), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": newBalance})
}

// reconcile handles POST /projects/{projectID}/balance/reconcile.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.balances.Reconcile(r.Context(), projectID(r))
	if errors.Is(err, ledger.ErrPartialSnapshot) {
		writePartial(w, err, rec)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reconciliation": rec})
}

// lastReconciliation handles GET /projects/{projectID}/balance/reconciliation.
func (h *Handler) lastReconciliation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.balances.LastReconciliation(projectID(r))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "No reconciliation has run for this project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reconciliation": rec})
}

// checkAffordability handles POST /projects/{projectID}/balance/affordability.
// A refused amount is still a 200; the body says whether it fits.
func (h *Handler) checkAffordability(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.balances.CheckAffordability(r.Context(), projectID(r), req.Amount)
	if errors.Is(err, ledger.ErrPartialSnapshot) {
		writePartial(w, err, result)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"affordability": result})
}
