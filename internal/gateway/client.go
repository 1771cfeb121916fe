package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
)

// Fallback is shown when the backend gives no usable message.
const Fallback = "Something went wrong. Please try again."

const (
	sessionPath = "auth/session.php"
	loginPath   = "auth/login.php"
	logoutPath  = "auth/logout.php"
)

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucherdesk_backend_requests_total",
		Help: "Calls made to the accounting backend, labeled by outcome",
	}, []string{"endpoint", "outcome"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voucherdesk_backend_request_duration_seconds",
		Help:    "Accounting backend latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"endpoint"})
)

var ErrEmptyBaseURL = errors.New("backend base url is required")

// ServerError is an HTTP failure or a response whose success flag is false.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error %d", e.Status)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// Message returns the text to show a user for a backend failure.
func Message(err error) string {
	var se *ServerError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}
	return Fallback
}

// Client talks JSON to the accounting backend under one base URL. Session
// cookies set by the backend are replayed on every call.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *zap.Logger
}

// New builds a client. A zero timeout leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout, Jar: jar},
		log:     log,
	}, nil
}

// Lookup fetches one {id, name} list.
func (c *Client) Lookup(ctx context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error) {
	var records []domain.LookupRecord
	if err := c.do(ctx, http.MethodGet, "lookup/"+string(kind)+".php", nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadVoucher fetches {master, details} for an existing voucher.
func (c *Client) ReadVoucher(ctx context.Context, endpoint, id string) (domain.Record, error) {
	var rec domain.Record
	err := c.do(ctx, http.MethodGet, endpoint, url.Values{"id": {id}}, nil, &rec)
	return rec, err
}

// CreateVoucher posts a create payload.
func (c *Client) CreateVoucher(ctx context.Context, endpoint string, payload any) (domain.Result, error) {
	var res domain.Result
	err := c.do(ctx, http.MethodPost, endpoint, nil, payload, &res)
	return res, err
}

// UpdateVoucher posts an update payload.
func (c *Client) UpdateVoucher(ctx context.Context, endpoint string, payload any) (domain.Result, error) {
	var res domain.Result
	err := c.do(ctx, http.MethodPost, endpoint, nil, payload, &res)
	return res, err
}

// ListVouchers returns previously submitted vouchers as raw JSON objects.
func (c *Client) ListVouchers(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type sessionState struct {
	Authenticated bool        `json:"authenticated"`
	User          domain.User `json:"user"`
}

// SessionCheck asks the backend who the current cookie belongs to.
func (c *Client) SessionCheck(ctx context.Context) (domain.User, bool, error) {
	var st sessionState
	if err := c.do(ctx, http.MethodGet, sessionPath, nil, nil, &st); err != nil {
		return domain.User{}, false, err
	}
	return st.User, st.Authenticated, nil
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodPost, loginPath, nil, creds, &user)
	return user, err
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, logoutPath, nil, struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	timer := prometheus.NewTimer(backendLatency.WithLabelValues(path))
	defer timer.ObserveDuration()

	err := c.roundTrip(ctx, method, path, query, body, out)
	outcome := "ok"
	var se *ServerError
	switch {
	case err == nil:
	case errors.As(err, &se):
		outcome = strconv.Itoa(se.Status)
	default:
		outcome = "transport"
	}
	backendRequests.WithLabelValues(path, outcome).Inc()
	if err != nil {
		c.log.Warn("backend call failed",
			zap.String("method", method),
			zap.String("endpoint", path),
			zap.Error(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return fmt.Errorf("endpoint %q: %w", path, err)
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	var env domain.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if decodeErr != nil {
			msg = ""
		}
		return &ServerError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &ServerError{Status: resp.StatusCode, Message: ""}
	}
	if !env.Success {
		return &ServerError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
