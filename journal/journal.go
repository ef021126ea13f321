// Package journal persists the trade history: one record per order attempt.
package journal

import "strings"

// Journal stores trade records. Log never fails outright; problems come back
// in the Outcome so that a logging fault cannot hide the trade result.
type Journal interface {
	Log(TradeRecord) Outcome
	Close() error
}

// Outcome reports how a Log call went.
type Outcome struct {
	warnings []string
	dropped  bool
}

// Logged is a clean write.
func Logged() Outcome { return Outcome{} }

// LoggedWithWarning means the record was written but something was off,
// such as a corrupt history file that had to be discarded.
func LoggedWithWarning(reason string) Outcome {
	return Outcome{warnings: []string{reason}}
}

// Dropped means the record could not be written.
func Dropped(reason string) Outcome {
	return Outcome{warnings: []string{reason}, dropped: true}
}

func (o Outcome) OK() bool { return len(o.warnings) == 0 }

func (o Outcome) Persisted() bool { return !o.dropped }

func (o Outcome) Warning() string { return strings.Join(o.warnings, "; ") }

// Merge combines two outcomes; the result is dropped if either was.
func (o Outcome) Merge(other Outcome) Outcome {
	return Outcome{
		warnings: append(append([]string(nil), o.warnings...), other.warnings...),
		dropped:  o.dropped || other.dropped,
	}
}

// Multi writes every record to each journal in turn.
type Multi []Journal

func (m Multi) Log(rec TradeRecord) Outcome {
	out := Logged()
	for _, j := range m {
		out = out.Merge(j.Log(rec))
	}
	return out
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
