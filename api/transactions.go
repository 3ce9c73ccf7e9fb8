package api

import (
	"net/http"

	"github.com/billbatista/obra-balance/transactions"
)

// addReceipt handles POST /projects/{projectID}/receipts.
func (h *Handler) addReceipt(w http.ResponseWriter, r *http.Request) {
	var req transactions.ReceiptInput
	if !decode(w, r, &req) {
		return
	}

	receipt, newBalance, err := h.transactions.AddReceipt(r.Context(), projectID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"receipt": receipt, "balance": newBalance})
}

// updateReceipt handles PUT /projects/{projectID}/receipts/{id}.
func (h *Handler) updateReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	receipt, newBalance, err := h.transactions.UpdateReceiptAmount(r.Context(), projectID(r), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt, "balance": newBalance})
}

// deleteReceipt handles DELETE /projects/{projectID}/receipts/{id}.
func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	newBalance, err := h.transactions.DeleteReceipt(r.Context(), projectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": newBalance})
}

// addAdvance handles POST /projects/{projectID}/advances.
func (h *Handler) addAdvance(w http.ResponseWriter, r *http.Request) {
	var req transactions.AdvanceInput
	if !decode(w, r, &req) {
		return
	}

	advance, newBalance, err := h.transactions.AddAdvancePayment(r.Context(), projectID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"advance": advance, "balance": newBalance})
}

// refundAdvance handles POST /projects/{projectID}/advances/{id}/refunds.
func (h *Handler) refundAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	advance, newBalance, err := h.transactions.RefundAdvance(r.Context(), projectID(r), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"advance": advance, "balance": newBalance})
}

// deleteAdvance handles DELETE /projects/{projectID}/advances/{id}.
func (h *Handler) deleteAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	newBalance, err := h.transactions.DeleteAdvancePayment(r.Context(), projectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": newBalance})
}

type contractorRequest struct {
	Name string `json:"name"`
}

// addContractor handles POST /projects/{projectID}/contractors.
func (h *Handler) addContractor(w http.ResponseWriter, r *http.Request) {
	var req contractorRequest
	if !decode(w, r, &req) {
		return
	}

	contractor, err := h.transactions.AddContractor(r.Context(), projectID(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"contractor": contractor})
}

// addContractorPayment handles POST /projects/{projectID}/contractor-payments.
func (h *Handler) addContractorPayment(w http.ResponseWriter, r *http.Request) {
	var req transactions.ContractorPaymentInput
	if !decode(w, r, &req) {
		return
	}

	payment, newBalance, err := h.transactions.AddContractorPayment(r.Context(), projectID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"contractorPayment": payment, "balance": newBalance})
}

// deleteContractorPayment handles DELETE /projects/{projectID}/contractor-payments/{id}.
func (h *Handler) deleteContractorPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	newBalance, err := h.transactions.DeleteContractorPayment(r.Context(), projectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": newBalance})
}

// addExpense handles POST /projects/{projectID}/expenses.
func (h *Handler) addExpense(w http.ResponseWriter, r *http.Request) {
	var req transactions.ExpenseInput
	if !decode(w, r, &req) {
		return
	}

	expense, newBalance, err := h.transactions.AddExpense(r.Context(), projectID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense, "balance": newBalance})
}

// updateExpense handles PUT /projects/{projectID}/expenses/{id}.
func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	expense, newBalance, err := h.transactions.UpdateExpenseAmount(r.Context(), projectID(r), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"expense": expense, "balance": newBalance})
}

// payExpense handles POST /projects/{projectID}/expenses/{id}/pay.
func (h *Handler) payExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	expense, newBalance, err := h.transactions.MarkExpensePaid(r.Context(), projectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"expense": expense, "balance": newBalance})
}

// deleteExpense handles DELETE /projects/{projectID}/expenses/{id}.
func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	newBalance, err := h.transactions.DeleteExpense(r.Context(), projectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": newBalance})
}
