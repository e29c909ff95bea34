package handlers

import (
	"context"
	"time"

	"marketscout/internal/auth"
	"marketscout/internal/cache"
	"marketscout/internal/config"
	"marketscout/internal/export"
	"marketscout/internal/models"
	"marketscout/internal/ratelimit"
)

// Store is the repository surface the HTTP handlers use.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, in models.UserCreate) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)

	ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductCreate) (*models.Product, error)

	ListAds(ctx context.Context, offset, limit int) ([]models.Ad, error)
	CreateAd(ctx context.Context, in models.AdCreate) (*models.Ad, error)

	ListTrendsForProduct(ctx context.Context, productID int64) ([]models.Trend, error)
	CreateTrend(ctx context.Context, in models.TrendCreate) (*models.Trend, error)

	ListWatchlist(ctx context.Context, userID int64) ([]models.WatchlistEntry, error)
	CreateWatchlistEntry(ctx context.Context, userID, productID int64) (*models.WatchlistEntry, error)
	DeleteWatchlistEntry(ctx context.Context, userID, productID int64) (bool, error)

	ListAlerts(ctx context.Context, userID int64) ([]models.Alert, error)
	CreateAlert(ctx context.Context, userID int64, message string) (*models.Alert, error)
}

type TrendEngine interface {
	RecordTrendScore(ctx context.Context, productID int64) (*models.TrendScore, error)
	CheckAlerts(ctx context.Context, userID int64) ([]string, error)
	GetTrendingProducts(ctx context.Context, limit int) ([]models.TrendingProduct, error)
	ScanForViralAds(ctx context.Context) ([]models.ViralAd, error)
	GenerateHeatMap(ctx context.Context) (models.HeatMap, error)
}

type Exporter interface {
	Export(ctx context.Context, userID int64, kind export.Kind) ([]byte, error)
}

type AlertDispatcher interface {
	Dispatch(ctx context.Context, user models.User, messages []string) ([]models.Alert, error)
}

// Settings are the tunables of the HTTP layer.
type Settings struct {
	Instance       string
	CacheTTL       time.Duration
	AllowedOrigins []string
	APITier        ratelimit.Tier
	AuthTier       ratelimit.Tier
	HeavyTier      ratelimit.Tier
	Heartbeat      time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Instance:       cfg.Instance,
		CacheTTL:       cfg.CacheTTL,
		AllowedOrigins: cfg.AllowedOrigins,
		APITier:        ratelimit.Tier{Name: "api", Rate: cfg.RateLimit.Requests, Period: cfg.Window},
		AuthTier:       ratelimit.Tier{Name: "auth", Rate: cfg.AuthLimit, Period: time.Minute},
		HeavyTier:      ratelimit.Tier{Name: "heavy", Rate: cfg.HeavyLimit, Period: time.Minute},
		Heartbeat:      15 * time.Second,
	}
}

// Deps wires a Server. Cache and Limiter are optional. A nil ClientIPs charges requests
// to the connection address.
type Deps struct {
	Store      Store
	Engine     TrendEngine
	Exporter   Exporter
	Dispatcher AlertDispatcher
	Tokens     *auth.TokenManager
	Cache      cache.Cache
	Limiter    ratelimit.Limiter
	ClientIPs  *ratelimit.ClientIPResolver
	Hub        *Hub
	Settings   Settings
}

type Server struct {
	store      Store
	engine     TrendEngine
	exporter   Exporter
	dispatcher AlertDispatcher
	tokens     *auth.TokenManager
	auth       *auth.Authenticator
	cache      cache.Cache
	limiter    ratelimit.Limiter
	clientIPs  *ratelimit.ClientIPResolver
	hub        *Hub
	settings   Settings
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:      d.Store,
		engine:     d.Engine,
		exporter:   d.Exporter,
		dispatcher: d.Dispatcher,
		tokens:     d.Tokens,
		cache:      d.Cache,
		limiter:    d.Limiter,
		clientIPs:  d.ClientIPs,
		hub:        d.Hub,
		settings:   d.Settings,
	}

	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	if s.settings.Heartbeat <= 0 {
		s.settings.Heartbeat = 15 * time.Second
	}
	s.auth = auth.NewAuthenticator(d.Tokens, d.Store, writeError)
	return s
}
