package services

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	minNameLength        = 3
	minDescriptionLength = 10
)

// pricePattern allows at most two decimal places, matching the
// numeric(12,2) price column
var pricePattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// maxPrice is the first value numeric(12,2) cannot hold
var maxPrice = decimal.New(1, 10)

var (
	errInvalidPrice    = errors.New("price must be a positive number")
	errInvalidImageURL = errors.New("image must be an http or https URL")
)

// ValidateName trims s and checks the minimum length
func ValidateName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) >= minNameLength
}

// ValidateDescription trims s and checks the minimum length
func ValidateDescription(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) >= minDescriptionLength
}

// ParsePrice accepts "25,90", "25.90", "R$ 25,90" and "1.234,56". The
// result must be positive with at most two decimal places, so the stored
// value equals the parsed one.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "r$")
	s = strings.ReplaceAll(s, " ", "")

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	if !pricePattern.MatchString(s) {
		return decimal.Decimal{}, errInvalidPrice
	}
	p, err := decimal.NewFromString(s)
	if err != nil || !p.IsPositive() || p.GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, errInvalidPrice
	}
	return p, nil
}

// ValidateImageURL checks that s is an absolute http(s) URL
func ValidateImageURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errInvalidImageURL
	}
	return s, nil
}

// IsSkip reports whether s asks to skip the optional image step
func IsSkip(s string) bool {
	switch normalize(s) {
	case "pular", "skip", "sem imagem", "sem foto":
		return true
	}
	return false
}
