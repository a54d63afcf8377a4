package models

const (
	// SummaryPrefix labels a successful run on the console.
	SummaryPrefix = "AI Weather Analysis: "
	// FailureLine is printed when no weather snapshot could be obtained.
	FailureLine = "Failed to retrieve weather data."
)

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	Summary     string       `json:"summary,omitempty"`
	OK          bool         `json:"ok"`
	Fallback    bool         `json:"fallback"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	// Condition names the failure kind of the first stage that failed, empty on success.
	Condition string `json:"condition,omitempty"`
}

// Line renders the single console line for the run.
func (a Analysis) Line() string {
	if !a.OK {
		return FailureLine
	}
	return SummaryPrefix + a.Summary
}
