package rename

import (
	"invoicehandler/internal/errors"
	"invoicehandler/internal/log"
	"invoicehandler/internal/rules"
)

// Status is the result class of processing one file
type Status int

const (
	Skipped Status = iota
	Renamed
	Planned
	Failed
)

func (s Status) String() string {
	switch s {
	case Renamed:
		return "renamed"
	case Planned:
		return "planned"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome describes what happened to one file
type Outcome struct {
	Status Status
	// Reason is set for Skipped and Failed outcomes
	Reason string
	From   string
	// To is set for Renamed and Planned outcomes
	To   string
	Rule *rules.Rule
	Err  error
}

func (o Outcome) fail(err error) Outcome {
	o.Status = Failed
	o.Err = err
	o.Reason = errors.KindOf(err).String()
	log.LogWithFields(log.F("file", o.From)).WithError(err).Warn("Failed to process file")
	return o
}
