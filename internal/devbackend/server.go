package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/service"
	"github.com/punchamoorthee/voucherdesk/internal/store"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

const maxBody = 1 << 20

// Repository is the read side of the backend.
type Repository interface {
	Lookup(ctx context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error)
	UserByUsername(ctx context.Context, username string) (store.UserRecord, error)
	ReadVoucher(ctx context.Context, kind string, id int64) (domain.Record, error)
	ListVouchers(ctx context.Context, kind string) ([]domain.Master, error)
}

// VoucherWriter stores vouchers transactionally.
type VoucherWriter interface {
	Create(ctx context.Context, in service.VoucherInput) (int64, error)
	Update(ctx context.Context, id int64, in service.VoucherInput, removed []int64) error
}

// Server answers the PHP-style endpoints the desk gateway calls.
type Server struct {
	repo     Repository
	vouchers VoucherWriter
	sessions *Sessions
	log      *zap.Logger
}

func NewServer(repo Repository, vouchers VoucherWriter, sessions *Sessions, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{repo: repo, vouchers: vouchers, sessions: sessions, log: log}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, "", map[string]string{"status": "ok"})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/session.php", s.sessionCheck).Methods("GET")
	api.HandleFunc("/auth/login.php", s.login).Methods("POST")
	api.HandleFunc("/auth/logout.php", s.logout).Methods("POST")
	api.HandleFunc("/lookup/{kind:[a-z_]+}.php", s.requireUser(s.lookup)).Methods("GET")
	api.HandleFunc("/{kind:[a-z_]+}/create.php", s.requireUser(s.create)).Methods("POST")
	api.HandleFunc("/{kind:[a-z_]+}/update.php", s.requireUser(s.update)).Methods("POST")
	api.HandleFunc("/{kind:[a-z_]+}/read.php", s.requireUser(s.read)).Methods("GET")
	api.HandleFunc("/{kind:[a-z_]+}/list.php", s.requireUser(s.list)).Methods("GET")
	return r
}

type userHandler func(w http.ResponseWriter, r *http.Request, user domain.User)

func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessions.User(r)
		if !ok {
			writeFail(w, http.StatusUnauthorized, "Session expired, please sign in again")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) sessionCheck(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessions.User(r)
	state := map[string]any{"authenticated": ok}
	if ok {
		state["user"] = user
	}
	writeOK(w, "", state)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&creds); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec, err := s.repo.UserByUsername(r.Context(), strings.TrimSpace(creds.Username))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("user lookup failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(creds.Password)) != nil {
		writeFail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	s.sessions.Start(w, rec.User)
	s.log.Info("user signed in", zap.String("user", rec.User.Username))
	writeOK(w, "Signed in", rec.User)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w, r)
	writeOK(w, "Signed out", nil)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, _ domain.User) {
	kind := domain.LookupKind(mux.Vars(r)["kind"])
	if !kind.Valid() {
		writeFail(w, http.StatusNotFound, "Unknown lookup")
		return
	}
	records, err := s.repo.Lookup(r.Context(), kind)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeOK(w, "", records)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, user domain.User) {
	cfg, ok := s.config(w, r)
	if !ok {
		return
	}
	in, err := decodeCreate(cfg, http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.fail(w, err)
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = user.ID.String()
	}
	s.describe(r.Context(), &in)

	id, err := s.vouchers.Create(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("voucher created", zap.String("kind", in.Kind), zap.Int64("id", id))
	writeOK(w, "Voucher saved", domain.Result{ID: domain.FlexString(strconv.FormatInt(id, 10))})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, user domain.User) {
	cfg, ok := s.config(w, r)
	if !ok {
		return
	}
	id, in, removed, err := decodeUpdate(cfg, http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.fail(w, err)
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = user.ID.String()
	}
	s.describe(r.Context(), &in)

	if err := s.vouchers.Update(r.Context(), id, in, removed); err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("voucher updated", zap.String("kind", in.Kind), zap.Int64("id", id), zap.Int("removed", len(removed)))
	writeOK(w, "Voucher updated", domain.Result{ID: domain.FlexString(strconv.FormatInt(id, 10))})
}

func (s *Server) read(w http.ResponseWriter, r *http.Request, _ domain.User) {
	cfg, ok := s.config(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("id")), 10, 64)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid voucher id")
		return
	}
	rec, err := s.repo.ReadVoucher(r.Context(), string(cfg.Kind), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeOK(w, "", rec)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, _ domain.User) {
	cfg, ok := s.config(w, r)
	if !ok {
		return
	}
	masters, err := s.repo.ListVouchers(r.Context(), string(cfg.Kind))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeOK(w, "", masters)
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) (voucher.Config, bool) {
	cfg, err := voucher.ConfigFor(voucher.Kind(mux.Vars(r)["kind"]))
	if err != nil {
		writeFail(w, http.StatusNotFound, "Unknown voucher type")
		return voucher.Config{}, false
	}
	return cfg, true
}

// describe fills empty line descriptions with account names.
func (s *Server) describe(ctx context.Context, in *service.VoucherInput) {
	accounts, err := s.repo.Lookup(ctx, domain.LookupAccounts)
	if err != nil {
		s.log.Warn("account lookup failed", zap.Error(err))
		return
	}
	for i := range in.Lines {
		if in.Lines[i].Description != "" {
			continue
		}
		if rec, ok := domain.FindLookup(accounts, in.Lines[i].Code); ok {
			in.Lines[i].Description = rec.Name
		}
	}
	if in.Counter != nil && in.Counter.Description == "" {
		if rec, ok := domain.FindLookup(accounts, in.Counter.Code); ok {
			in.Counter.Description = rec.Name
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		writeFail(w, http.StatusBadRequest, string(bad))
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrVoucherNotFound):
		writeFail(w, http.StatusNotFound, "Voucher not found")
	case errors.Is(err, service.ErrNoLines),
		errors.Is(err, service.ErrInvalidLine),
		errors.Is(err, service.ErrUnbalanced),
		errors.Is(err, service.ErrDetailNotFound):
		writeFail(w, http.StatusUnprocessableEntity, sentence(err.Error()))
	case errors.Is(err, service.ErrConflict):
		writeFail(w, http.StatusConflict, "Voucher was changed by someone else. Reload and try again.")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeOK(w http.ResponseWriter, msg string, data any) {
	env := domain.Envelope{Success: true, Message: msg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		env.Data = raw
	}
	writeEnvelope(w, http.StatusOK, env)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, domain.Envelope{Success: false, Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, env domain.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
