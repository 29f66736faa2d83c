package connectivity

import (
	"fmt"
)

// Outcome is the result of the most recent attempt of a feed.
type Outcome int

const (
	Pending Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "Pending"
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome by name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// OutcomeOf maps an error to Success or Failure.
func OutcomeOf(err error) Outcome {
	if err != nil {
		return Failure
	}
	return Success
}
