package handlers

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketscout/internal/ratelimit"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status", "instance"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "instance"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// NewRouter builds the full HTTP surface.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()
	r.Use(s.metrics)

	api := s.limit(s.settings.APITier)
	authLimit := s.limit(s.settings.AuthTier)
	heavy := s.limit(s.settings.HeavyTier)
	user := s.auth.RequireUser

	r.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Handle("/signup", authLimit(http.HandlerFunc(s.Signup))).Methods(http.MethodPost)
	r.Handle("/token", authLimit(http.HandlerFunc(s.Token))).Methods(http.MethodPost)

	r.HandleFunc("/products", s.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/products", s.CreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{product_id:[0-9]+}", s.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/ads", s.ListAds).Methods(http.MethodGet)
	r.HandleFunc("/ads", s.CreateAd).Methods(http.MethodPost)
	r.HandleFunc("/trends/{product_id:[0-9]+}", s.ListTrends).Methods(http.MethodGet)
	r.HandleFunc("/trends", s.CreateTrend).Methods(http.MethodPost)

	r.Handle("/watchlists", user(http.HandlerFunc(s.ListWatchlist))).Methods(http.MethodGet)
	r.Handle("/watchlists", user(http.HandlerFunc(s.AddToWatchlist))).Methods(http.MethodPost)
	r.Handle("/watchlists/{product_id:[0-9]+}", user(http.HandlerFunc(s.RemoveFromWatchlist))).Methods(http.MethodDelete)

	r.Handle("/alerts", user(http.HandlerFunc(s.ListAlerts))).Methods(http.MethodGet)
	r.Handle("/alerts", user(http.HandlerFunc(s.CreateAlert))).Methods(http.MethodPost)
	r.Handle("/alerts/stream", user(http.HandlerFunc(s.StreamAlerts))).Methods(http.MethodGet)
	r.Handle("/alerts/ws", user(http.HandlerFunc(s.AlertsWebSocket))).Methods(http.MethodGet)

	r.Handle("/scan-ads", api(http.HandlerFunc(s.ScanAds))).Methods(http.MethodGet)
	r.Handle("/heat-map", api(http.HandlerFunc(s.HeatMap))).Methods(http.MethodGet)
	r.Handle("/trending", api(http.HandlerFunc(s.Trending))).Methods(http.MethodGet)
	r.Handle("/calculate-score/{product_id:[0-9]+}", heavy(http.HandlerFunc(s.CalculateScore))).Methods(http.MethodPost)
	r.Handle("/check-alerts", api(user(http.HandlerFunc(s.CheckAlerts)))).Methods(http.MethodGet)
	r.Handle("/export/{kind}", api(user(http.HandlerFunc(s.Export)))).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: true, Message: "Not Found", StatusCode: http.StatusNotFound})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: true, Message: "Method Not Allowed", StatusCode: http.StatusMethodNotAllowed})
	})

	return withRequestID(cors(s.settings.AllowedOrigins)(r))
}

func (s *Server) limit(tier ratelimit.Tier) func(http.Handler) http.Handler {
	if s.limiter == nil || tier.Rate <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(s.limiter, tier, s.clientIPs, writeRateLimited)
}

// cors answers preflight requests and decorates responses for allowed origins.
// A "*" entry allows every origin.
func cors(allowed []string) func(http.Handler) http.Handler {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, ok := set[origin]
			if !allowAll && !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After, Content-Disposition")
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequestDuration.WithLabelValues(r.Method, route, s.settings.Instance).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status), s.settings.Instance).Inc()
	})
}

// statusRecorder captures the response status while keeping streaming and upgrades working.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
