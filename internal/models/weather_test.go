package models

import "testing"

// TestLocationQuery_Q verifies the geocoding q parameter joins city, state and
// country with commas and skips blank parts.
func TestLocationQuery_Q(t *testing.T) {
	tests := []struct {
		name string
		q    LocationQuery
		want string
	}{
		{"full", LocationQuery{City: "Stamford", State: "CT", Country: "US", Limit: 1}, "Stamford,CT,US"},
		{"no state", LocationQuery{City: "London", Country: "GB"}, "London,GB"},
		{"whitespace trimmed", LocationQuery{City: " Paris ", State: " ", Country: "FR"}, "Paris,FR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Q(); got != tt.want {
				t.Errorf("Q() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAnalysis_Line verifies the success and failure console lines.
func TestAnalysis_Line(t *testing.T) {
	ok := Analysis{OK: true, Summary: "Sunny, wear a t-shirt."}
	if got, want := ok.Line(), "AI Weather Analysis: Sunny, wear a t-shirt."; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}

	fallback := Analysis{OK: true, Fallback: true, Summary: "Weather analysis unavailable at the moment."}
	if got, want := fallback.Line(), "AI Weather Analysis: Weather analysis unavailable at the moment."; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}

	failed := Analysis{Condition: "EmptyResult"}
	if got := failed.Line(); got != "Failed to retrieve weather data." {
		t.Errorf("Line() = %q, want failure line", got)
	}
}
