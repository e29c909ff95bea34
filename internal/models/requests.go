package models

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"marketscout/internal/apperr"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// UserCreate is the signup payload.
type UserCreate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProductCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AdCreate struct {
	ProductID int64    `json:"product_id"`
	Platform  Platform `json:"platform"`
	Content   string   `json:"ad_content"`
}

type TrendCreate struct {
	ProductID int64   `json:"product_id"`
	Score     float64 `json:"score"`
}

type WatchlistCreate struct {
	ProductID int64 `json:"product_id"`
}

type AlertCreate struct {
	Message string `json:"message"`
}

// fieldErrors collects per-field validation failures.
type fieldErrors []apperr.FieldError

func (f *fieldErrors) add(field, format string, args ...any) {
	*f = append(*f, apperr.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation("Validation failed", f...)
}

// Normalize trims surrounding whitespace before validation.
func (u *UserCreate) Normalize() {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
}

func (u UserCreate) Validate() error {
	var errs fieldErrors

	switch n := utf8.RuneCountInString(u.Username); {
	case n == 0:
		errs.add("username", "Username cannot be empty")
	case n < 3:
		errs.add("username", "Username must be at least 3 characters long")
	case n > 50:
		errs.add("username", "Username must be at most 50 characters")
	case !usernamePattern.MatchString(u.Username):
		errs.add("username", "Username can only contain letters, numbers, and underscores")
	}

	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		errs.add("email", "Email must be a valid email address")
	}

	// bcrypt only reads the first 72 bytes.
	switch n := len(u.Password); {
	case n < 6:
		errs.add("password", "Password must be at least 6 characters long")
	case n > 72:
		errs.add("password", "Password must be at most 72 bytes")
	}

	return errs.err()
}

func (p *ProductCreate) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
}

func (p ProductCreate) Validate() error {
	var errs fieldErrors

	if p.Name == "" {
		errs.add("name", "Product name cannot be empty")
	} else if utf8.RuneCountInString(p.Name) > 200 {
		errs.add("name", "Product name must be at most 200 characters")
	}

	if p.Description == "" {
		errs.add("description", "Product description cannot be empty")
	} else if utf8.RuneCountInString(p.Description) > 1000 {
		errs.add("description", "Product description must be at most 1000 characters")
	}

	return errs.err()
}

func (a *AdCreate) Normalize() {
	a.Content = strings.TrimSpace(a.Content)
}

func (a AdCreate) Validate() error {
	var errs fieldErrors

	if a.ProductID <= 0 {
		errs.add("product_id", "Product id must be positive")
	}

	if !ValidPlatform(a.Platform) {
		errs.add("platform", "Platform must be one of: %s", platformList())
	}

	if a.Content == "" {
		errs.add("ad_content", "Ad content cannot be empty")
	} else if utf8.RuneCountInString(a.Content) > 2000 {
		errs.add("ad_content", "Ad content must be at most 2000 characters")
	}

	return errs.err()
}

func (t TrendCreate) Validate() error {
	var errs fieldErrors
	if t.ProductID <= 0 {
		errs.add("product_id", "Product id must be positive")
	}
	return errs.err()
}

func (w WatchlistCreate) Validate() error {
	var errs fieldErrors
	if w.ProductID <= 0 {
		errs.add("product_id", "Product id must be positive")
	}
	return errs.err()
}

func (a *AlertCreate) Normalize() {
	a.Message = strings.TrimSpace(a.Message)
}

func (a AlertCreate) Validate() error {
	var errs fieldErrors
	if a.Message == "" {
		errs.add("message", "Alert message cannot be empty")
	}
	return errs.err()
}

// ValidPlatform reports whether p is one of the accepted platforms.
func ValidPlatform(p Platform) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

func platformList() string {
	names := make([]string, len(Platforms))
	for i, p := range Platforms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
