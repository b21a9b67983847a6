package model

// FetchOutcome is the result class of an icon fetch.
type FetchOutcome string

const (
	OutcomeOK           FetchOutcome = "ok"
	OutcomeNotFound     FetchOutcome = "not_found"
	OutcomeNetworkError FetchOutcome = "network_error"
)

// Valid reports whether o is one of the known outcomes.
func (o FetchOutcome) Valid() bool {
	switch o {
	case OutcomeOK, OutcomeNotFound, OutcomeNetworkError:
		return true
	}
	return false
}
