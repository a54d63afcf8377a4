package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/kjstillabower/weather-brief/internal/models"
)

// TestValidateQuery_Valid verifies accepted inputs and their normalization.
func TestValidateQuery_Valid(t *testing.T) {
	tests := []struct {
		name                 string
		city, state, country string
		limit                int
		want                 models.LocationQuery
	}{
		{"default", "Stamford", "CT", "US", 1, models.LocationQuery{City: "Stamford", State: "CT", Country: "US", Limit: 1}},
		{"trim and upper", "  Stamford ", " ct ", "us", 1, models.LocationQuery{City: "Stamford", State: "CT", Country: "US", Limit: 1}},
		{"no state", "London", "", "GB", 5, models.LocationQuery{City: "London", Country: "GB", Limit: 5}},
		{"punctuation", "St. John's", "NL", "CA", 1, models.LocationQuery{City: "St. John's", State: "NL", Country: "CA", Limit: 1}},
		{"hyphen", "Winston-Salem", "NC", "US", 2, models.LocationQuery{City: "Winston-Salem", State: "NC", Country: "US", Limit: 2}},
		{"unicode", "São Paulo", "SP", "BR", 1, models.LocationQuery{City: "São Paulo", State: "SP", Country: "BR", Limit: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateQuery(tt.city, tt.state, tt.country, tt.limit)
			if err != nil {
				t.Fatalf("ValidateQuery() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateQuery() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestValidateQuery_Invalid verifies each rule returns its sentinel error.
func TestValidateQuery_Invalid(t *testing.T) {
	tests := []struct {
		name                 string
		city, state, country string
		limit                int
		wantErr              error
	}{
		{"empty city", "   ", "CT", "US", 1, ErrCityEmpty},
		{"long city", strings.Repeat("a", 86), "CT", "US", 1, ErrCityTooLong},
		{"comma in city", "Stamford,CT", "", "US", 1, ErrCityInvalidChars},
		{"ampersand", "A&B", "", "US", 1, ErrCityInvalidChars},
		{"long state", "Stamford", "CONN", "US", 1, ErrStateInvalid},
		{"state symbol", "Stamford", "C-", "US", 1, ErrStateInvalid},
		{"empty country", "Stamford", "CT", "", 1, ErrCountryInvalid},
		{"three letter country", "Stamford", "CT", "USA", 1, ErrCountryInvalid},
		{"digit country", "Stamford", "CT", "U1", 1, ErrCountryInvalid},
		{"zero limit", "Stamford", "CT", "US", 0, ErrLimitOutOfRange},
		{"limit too high", "Stamford", "CT", "US", 6, ErrLimitOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateQuery(tt.city, tt.state, tt.country, tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuery() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
