package store

import (
	"fmt"
	"regexp"
	"strings"

	a "github.com/petar-dambovaliev/aho-corasick"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

// reservedWords may not appear as a whole word of a slug; they collide with page and API routes.
var reservedWords = []string{
	"admin", "api", "app", "auth", "dashboard", "forgot", "health", "help", "login", "logout",
	"metrics", "onboarding", "password", "ready", "register", "reset", "settings", "static",
	"storelink", "support", "www",
}

var (
	reservedBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
	})
	reservedMatcher = reservedBuilder.Build(reservedWords)
)

// NormalizeSlug lowercases and trims a user supplied slug.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateSlug checks the shape of a normalized slug and rejects reserved words.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug must be 3-40 characters of a-z, 0-9 and inner hyphens: %w", types.ErrBadRequest)
	}
	if reservedMatcher.Iter(strings.ReplaceAll(slug, "-", " ")).Next() != nil {
		return fmt.Errorf("slug %q contains a reserved word: %w", slug, types.ErrBadRequest)
	}
	return nil
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizeWhatsApp reduces a phone number to the E.164 digits used in wa.me links.
func NormalizeWhatsApp(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.ContainsAny(trimmed, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return "", fmt.Errorf("whatsapp number must contain only digits: %w", types.ErrBadRequest)
	}
	digits := nonDigits.ReplaceAllString(trimmed, "")
	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("whatsapp number must have 8-15 digits including country code: %w", types.ErrBadRequest)
	}
	return digits, nil
}
