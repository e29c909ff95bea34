// Package ratelimit throttles requests per client address with a Redis-backed GCRA limiter.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketscout/internal/logger"
)

var rateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	},
	[]string{"tier"},
)

func init() {
	prometheus.MustRegister(rateLimitedTotal)
}

// Tier is a named request budget.
type Tier struct {
	Name   string
	Rate   int
	Period time.Duration
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, tier Tier) (Result, error)
}

// RedisLimiter shares budgets across every API instance using the same Redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
}

func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{limiter: redis_rate.NewLimiter(client)}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, tier Tier) (Result, error) {
	res, err := l.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   tier.Rate,
		Burst:  tier.Rate,
		Period: tier.Period,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// RejectFunc writes the response for a throttled request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// Middleware enforces tier per client address as resolved by ips. Limiter failures let
// the request through.
func Middleware(l Limiter, tier Tier, ips *ClientIPResolver, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + tier.Name + ":" + ips.ClientIP(r)

			res, err := l.Allow(r.Context(), key, tier)
			if err != nil {
				logger.Log.Warn("Rate limiter unavailable, allowing request",
					zap.String("tier", tier.Name),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tier.Rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))

			if !res.Allowed {
				rateLimitedTotal.WithLabelValues(tier.Name).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
				reject(w, r, res.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPResolver picks the address a request is charged to. X-Forwarded-For is only
// read when the connection comes from a trusted proxy. A nil resolver trusts nobody.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver accepts proxy addresses as single IPs or CIDR ranges.
func NewClientIPResolver(proxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			res.trusted = append(res.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, cidr, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		res.trusted = append(res.trusted, cidr)
	}
	return res, nil
}

// ClientIP returns the connection peer, or, behind trusted proxies, the right-most
// X-Forwarded-For hop that is not itself a trusted proxy.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := RemoteIP(r)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		if net.ParseIP(hops[i]) == nil {
			// A garbled hop means nothing to its left can be attributed.
			return peer
		}
		if !c.isTrusted(hops[i]) {
			return hops[i]
		}
	}
	return peer
}

func (c *ClientIPResolver) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range c.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RemoteIP is the host part of the connection address.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
