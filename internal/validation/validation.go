package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kjstillabower/weather-brief/internal/models"
)

var (
	ErrCityEmpty        = errors.New("city is required")
	ErrCityTooLong      = errors.New("city too long")
	ErrCityInvalidChars = errors.New("city contains invalid characters")
	ErrStateInvalid     = errors.New("state must be 1-3 letters or digits")
	ErrCountryInvalid   = errors.New("country must be a 2-letter ISO 3166 code")
	ErrLimitOutOfRange  = errors.New("limit must be between 1 and 5")
)

const (
	maxCityRunes = 85
	maxLimit     = 5
)

// ValidateQuery trims and checks each part of a geocoding query and returns the
// normalized query. Commas are rejected everywhere since they separate the parts of q.
func ValidateQuery(city, state, country string, limit int) (models.LocationQuery, error) {
	city = strings.TrimSpace(city)
	state = strings.ToUpper(strings.TrimSpace(state))
	country = strings.ToUpper(strings.TrimSpace(country))

	r := []rune(city)
	switch {
	case len(r) == 0:
		return models.LocationQuery{}, ErrCityEmpty
	case len(r) > maxCityRunes:
		return models.LocationQuery{}, ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return models.LocationQuery{}, fmt.Errorf("%w: %q", ErrCityInvalidChars, c)
		}
	}

	if state != "" && (len(state) > 3 || !allASCIIAlnum(state)) {
		return models.LocationQuery{}, fmt.Errorf("%w: %q", ErrStateInvalid, state)
	}
	if len(country) != 2 || !allASCIILetters(country) {
		return models.LocationQuery{}, fmt.Errorf("%w: %q", ErrCountryInvalid, country)
	}
	if limit < 1 || limit > maxLimit {
		return models.LocationQuery{}, fmt.Errorf("%w: %d", ErrLimitOutOfRange, limit)
	}

	return models.LocationQuery{City: city, State: state, Country: country, Limit: limit}, nil
}

// isAllowedCityRune allows Unicode letters, digits, space, hyphen, apostrophe and period
// ("St. John's", "Winston-Salem").
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) {
		return true
	}
	switch r {
	case ' ', '-', '\'', '.':
		return true
	}
	return false
}

func allASCIILetters(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func allASCIIAlnum(s string) bool {
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
