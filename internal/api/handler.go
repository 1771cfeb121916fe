package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/form"
	"github.com/punchamoorthee/voucherdesk/internal/gateway"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/models"
	"github.com/punchamoorthee/voucherdesk/internal/session"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucherdesk_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voucherdesk_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type Handler struct {
	session *session.Holder
	forms   *form.Controller
	drafts  *form.Registry
	log     *zap.Logger
}

func NewHandler(sess *session.Holder, forms *form.Controller, drafts *form.Registry, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{session: sess, forms: forms, drafts: drafts, log: log}
}

// NewRouter wires every desk route onto a gorilla router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/session", h.GetSession).Methods("GET")
	v1.HandleFunc("/session", h.Login).Methods("POST")
	v1.HandleFunc("/session", h.Logout).Methods("DELETE")

	v1.HandleFunc("/lookups/{kind}", h.GetLookup).Methods("GET")
	v1.HandleFunc("/vouchers/{kind}", h.ListVouchers).Methods("GET")

	v1.HandleFunc("/drafts", h.OpenDraft).Methods("POST")
	v1.HandleFunc("/drafts/{id}", h.GetDraft).Methods("GET")
	v1.HandleFunc("/drafts/{id}", h.DeleteDraft).Methods("DELETE")
	v1.HandleFunc("/drafts/{id}/header", h.UpdateHeader).Methods("PUT")
	v1.HandleFunc("/drafts/{id}/rows", h.AddRow).Methods("POST")
	v1.HandleFunc("/drafts/{id}/rows/{rowID}", h.SetRowAccount).Methods("PUT")
	v1.HandleFunc("/drafts/{id}/rows/{rowID}", h.RemoveRow).Methods("DELETE")
	v1.HandleFunc("/drafts/{id}/rows/{rowID}/debit", h.SetDebit).Methods("PUT")
	v1.HandleFunc("/drafts/{id}/rows/{rowID}/credit", h.SetCredit).Methods("PUT")
	v1.HandleFunc("/drafts/{id}/resume", h.ResumeDraft).Methods("POST")
	v1.HandleFunc("/drafts/{id}/submit", h.SubmitDraft).Methods("POST")
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	user, ok, err := h.session.Check(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, gateway.Message(err))
		return
	}
	respondJSON(w, http.StatusOK, sessionView(user, ok))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	user, err := h.session.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrMissingCredentials) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		var se *gateway.ServerError
		if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
			respondError(w, http.StatusUnauthorized, gateway.Message(err))
			return
		}
		respondError(w, http.StatusBadGateway, gateway.Message(err))
		return
	}
	respondJSON(w, http.StatusOK, sessionView(user, true))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.log.Warn("backend logout failed", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, sessionView(domain.User{}, false))
}

func (h *Handler) GetLookup(w http.ResponseWriter, r *http.Request) {
	kind := domain.LookupKind(mux.Vars(r)["kind"])
	if !kind.Valid() {
		respondError(w, http.StatusNotFound, "Unknown lookup")
		return
	}
	records, err := h.forms.Lookup(r.Context(), kind)
	if err != nil {
		h.fail(w, err)
		return
	}
	if records == nil {
		records = []domain.LookupRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	kind := voucher.Kind(mux.Vars(r)["kind"])
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	items, err := h.forms.List(r.Context(), kind)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, paginate(items, page, perPage))
}

func paginate(items []json.RawMessage, page, perPage int) models.Page {
	start := len(items)
	if page-1 <= len(items)/perPage {
		start = (page - 1) * perPage
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	out := items[start:end]
	if out == nil {
		out = []json.RawMessage{}
	}
	return models.Page{Items: out, Page: page, PerPage: perPage, Total: len(items)}
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func sessionView(user domain.User, ok bool) models.SessionView {
	if !ok {
		return models.SessionView{}
	}
	return models.SessionView{Authenticated: true, User: &user}
}

// fail maps an error from the form layer to a response.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verr ledger.ValidationError
	var serr *form.SubmitError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: verr.Msg, Field: verr.Field})
	case errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrBothSides),
		errors.Is(err, ledger.ErrInvalidSide):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, form.ErrDraftNotFound), errors.Is(err, ledger.ErrRowNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, voucher.ErrUnknownKind):
		respondError(w, http.StatusNotFound, "Unknown voucher kind")
	case errors.Is(err, session.ErrNotSignedIn):
		respondError(w, http.StatusUnauthorized, "Sign in to continue")
	case errors.As(err, &serr):
		respondError(w, http.StatusBadGateway, serr.Message)
	default:
		h.log.Warn("request failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, gateway.Message(err))
	}
}

// Helpers
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, models.ErrorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records the request counter and latency under the route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
