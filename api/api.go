// Package api exposes the balance engine and the transaction service over
// JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/billbatista/obra-balance/balance"
	"github.com/billbatista/obra-balance/eventlogger"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/billbatista/obra-balance/middleware"
	"github.com/billbatista/obra-balance/transactions"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type Projects interface {
	middleware.ProjectFinder
	ListProjects(ctx context.Context) ([]ledger.Project, error)
	CreateProject(ctx context.Context, project ledger.Project) error
}

// Balances is the engine surface the handlers use. balance.Engine
// satisfies it.
type Balances interface {
	ComputeSnapshot(ctx context.Context, projectID uuid.UUID) (ledger.BalanceSnapshot, error)
	AdjustBalance(ctx context.Context, projectID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	Reconcile(ctx context.Context, projectID uuid.UUID) (balance.Reconciliation, error)
	LastReconciliation(projectID uuid.UUID) (balance.Reconciliation, bool)
	CheckAffordability(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) (balance.Affordability, error)
}

type Recorder interface {
	Log(event eventlogger.Event)
}

type nopRecorder struct{}

func (nopRecorder) Log(eventlogger.Event) {}

type Handler struct {
	projects     Projects
	balances     Balances
	transactions *transactions.Service
	recorder     Recorder
	gatherer     prometheus.Gatherer
}

type Option func(*Handler)

func WithRecorder(r Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// WithGatherer sets the registry served on /metrics. The default is the
// global prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

func New(projects Projects, balances Balances, txs *transactions.Service, opts ...Option) *Handler {
	h := &Handler{
		projects:     projects,
		balances:     balances,
		transactions: txs,
		recorder:     nopRecorder{},
		gatherer:     prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	router.Get("/health", h.health)
	router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	router.Route("/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Post("/", h.createProject)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Use(middleware.ProjectContext(h.projects))

			r.Route("/balance", func(r chi.Router) {
				r.Get("/", h.getBalance)
				r.Post("/adjust", h.adjustBalance)
				r.Post("/reconcile", h.reconcile)
				r.Get("/reconciliation", h.lastReconciliation)
				r.Post("/affordability", h.checkAffordability)
			})

			r.Route("/receipts", func(r chi.Router) {
				r.Post("/", h.addReceipt)
				r.Put("/{id}", h.updateReceipt)
				r.Delete("/{id}", h.deleteReceipt)
			})

			r.Route("/advances", func(r chi.Router) {
				r.Post("/", h.addAdvance)
				r.Post("/{id}/refunds", h.refundAdvance)
				r.Delete("/{id}", h.deleteAdvance)
			})

			r.Post("/contractors", h.addContractor)

			r.Route("/contractor-payments", func(r chi.Router) {
				r.Post("/", h.addContractorPayment)
				r.Delete("/{id}", h.deleteContractorPayment)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", h.addExpense)
				r.Put("/{id}", h.updateExpense)
				r.Post("/{id}/pay", h.payExpense)
				r.Delete("/{id}", h.deleteExpense)
			})
		})
	})

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.recorder.Log(eventlogger.NewEvent(
		eventlogger.WithType("health_request"),
		eventlogger.WithData(map[string]string{
			"message":     "ok",
			"http_status": strconv.Itoa(http.StatusOK),
		}),
	))
	w.Write([]byte("ok"))
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type insufficientResponse struct {
	ErrorResponse
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
	Deficit decimal.Decimal `json:"deficit"`
}

type partialResponse struct {
	ErrorResponse
	Result any `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// writePartial answers 503 while still showing what could be computed.
func writePartial(w http.ResponseWriter, err error, result any) {
	writeJSON(w, http.StatusServiceUnavailable, partialResponse{
		ErrorResponse: ErrorResponse{Error: "partial_snapshot", ErrorDescription: err.Error()},
		Result:        result,
	})
}

// writeError maps an engine or service error to its status code.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *transactions.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, insufficientResponse{
			ErrorResponse: ErrorResponse{Error: "insufficient_balance", ErrorDescription: ledger.ErrInsufficientBalance.Error()},
			Amount:        insufficient.Amount,
			Balance:       insufficient.Balance,
			Deficit:       insufficient.Deficit,
		})
	case errors.Is(err, ledger.ErrNoActiveProject):
		writeJSONError(w, http.StatusNotFound, "no_active_project", ledger.ErrNoActiveProject.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", ledger.ErrNotFound.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidPaymentStatus),
		errors.Is(err, ledger.ErrMissingContractor),
		errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrRefundExceedsAmount):
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, ledger.ErrAlreadyPaid):
		writeJSONError(w, http.StatusConflict, "already_paid", ledger.ErrAlreadyPaid.Error())
	case errors.Is(err, ledger.ErrPartialSnapshot):
		writeJSONError(w, http.StatusServiceUnavailable, "partial_snapshot", err.Error())
	case errors.Is(err, ledger.ErrPersistenceFailure):
		slog.Error("balance not persisted", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "persistence_failure", ledger.ErrPersistenceFailure.Error())
	default:
		slog.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return false
	}
	return true
}

func projectID(r *http.Request) uuid.UUID {
	id, _ := middleware.GetProjectID(r.Context())
	return id
}

func recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid record ID")
		return uuid.Nil, false
	}
	return id, true
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
