package models

import (
	"time"
)

// Platform is a social network an ad was seen on.
type Platform string

const (
	PlatformTikTok    Platform = "TikTok"
	PlatformFacebook  Platform = "Facebook"
	PlatformInstagram Platform = "Instagram"
	PlatformYouTube   Platform = "YouTube"
	PlatformTwitter   Platform = "Twitter"
)

// Platforms lists the accepted ad platforms in display order.
var Platforms = []Platform{PlatformTikTok, PlatformFacebook, PlatformInstagram, PlatformYouTube, PlatformTwitter}

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Ad is a sighting of an advertisement for a product on a platform.
type Ad struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Platform  Platform  `json:"platform" db:"platform"`
	Content   string    `json:"ad_content" db:"ad_content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Trend is one recorded trend score for a product.
type Trend struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Score     float64   `json:"score" db:"score"`
	Date      time.Time `json:"date" db:"date"`
}

type WatchlistEntry struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Alert struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TrendScore is the result of scoring a product and recording the score.
type TrendScore struct {
	ProductID    int64     `json:"product_id"`
	Score        float64   `json:"trend_score"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// TrendingProduct is a product with its best score of the trending window.
type TrendingProduct struct {
	Product      Product   `json:"product"`
	CurrentScore float64   `json:"current_score"`
	LastUpdated  time.Time `json:"last_updated"`
}

// ViralAd is a synthetic high-engagement ad sighting.
type ViralAd struct {
	ProductName     string    `json:"product_name"`
	Platform        Platform  `json:"platform"`
	Content         string    `json:"content"`
	EngagementScore int       `json:"engagement_score"`
	DetectedAt      time.Time `json:"detected_at"`
}

// HeatMap maps product name to region to popularity.
type HeatMap map[string]map[string]int
