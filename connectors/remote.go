package connectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"resource-hub/models"
)

const userAgent = "resource-hub/1.0 (+metadata gateway)"

var (
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
)

func init() {
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_requests_total",
			Help: "Total number of backend requests by source, operation and outcome.",
		},
		[]string{"source", "operation", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_request_duration_seconds",
			Help:    "Latency of backend requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)
	prometheus.MustRegister(requestsTotal, requestDuration)
}

// StatusError meldet eine Antwort mit unerwartetem HTTP-Status.
type StatusError struct {
	Operation string
	Code      int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", ErrUnexpectedStatus, e.Operation, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// IsUnauthorized meldet, ob err auf eine 401- oder 403-Antwort zurückgeht.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
	}
	return false
}

// userAgentTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", userAgent)
	}
	return t.Transport.RoundTrip(req)
}

// RemoteOptions konfiguriert die HTTP-Anbindung eines Connectors.
type RemoteOptions struct {
	Source      models.SourceTag
	Timeout     time.Duration
	RateLimit   float64 // Anfragen pro Sekunde, <= 0 bedeutet unbegrenzt
	MaxFailures uint32
	OpenTimeout time.Duration
	Jar         http.CookieJar
	Logger      *zap.Logger
}

// Remote bündelt HTTP-Client, Circuit Breaker und Rate Limiter eines Backends.
type Remote struct {
	source  models.SourceTag
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRemote erstellt die HTTP-Anbindung für ein Backend.
func NewRemote(opts RemoteOptions) *Remote {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	logger := opts.Logger.With(zap.String("source", string(opts.Source)))
	maxFailures := opts.MaxFailures

	return &Remote{
		source: opts.Source,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       opts.Jar,
			Transport: &userAgentTransport{Transport: http.DefaultTransport},
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(opts.Source),
			MaxRequests: 1,
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		}),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// HTTPClient gibt den zugrunde liegenden Client zurück, z.B. für oauth2.
func (r *Remote) HTTPClient() *http.Client {
	return r.client
}

// Do führt req aus und gibt die Antwort nur zurück, wenn ihr Status in okCodes
// liegt (ohne Angabe: jeder 2xx-Status). Der Aufrufer schließt den Body.
// Transportfehler und 5xx zählen für den Circuit Breaker als Fehlschlag.
func (r *Remote) Do(req *http.Request, operation string, okCodes ...int) (*http.Response, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(r.source), operation).Observe(time.Since(start).Seconds())
	}()

	if err := r.limiter.Wait(req.Context()); err != nil {
		requestsTotal.WithLabelValues(string(r.source), operation, "error").Inc()
		return nil, err
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			drain(resp)
			return nil, &StatusError{Operation: operation, Code: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		requestsTotal.WithLabelValues(string(r.source), operation, outcome).Inc()
		r.logger.Debug("Backend request failed", zap.String("operation", operation), zap.Error(err))
		return nil, err
	}

	resp := out.(*http.Response)
	if !statusAccepted(resp.StatusCode, okCodes) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		drain(resp)
		requestsTotal.WithLabelValues(string(r.source), operation, "status").Inc()
		r.logger.Debug("Backend returned non-success status",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, &StatusError{Operation: operation, Code: resp.StatusCode}
	}

	requestsTotal.WithLabelValues(string(r.source), operation, "success").Inc()
	return resp, nil
}

// DoJSON führt req aus und dekodiert die JSON-Antwort nach out (falls nicht nil).
func (r *Remote) DoJSON(req *http.Request, operation string, out any, okCodes ...int) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := r.Do(req, operation, okCodes...)
	if err != nil {
		return err
	}
	defer drain(resp)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", operation, err)
	}
	return nil
}

func statusAccepted(code int, okCodes []int) bool {
	if len(okCodes) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range okCodes {
		if c == code {
			return true
		}
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
