// Package errors defines the pipeline's error taxonomy. Per-unit failures wrap
// a sentinel in a UnitError so the run can record them and move on; only
// structural failures are fatal to a run.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAsset              = errors.New("asset error")
	ErrHardConstraint     = errors.New("hard constraint violation")
	ErrRepairExhausted    = errors.New("repair attempts exhausted")
	ErrTemplateResolution = errors.New("template resolution failed")
	ErrIndexCorruption    = errors.New("similarity index corruption")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrStageMissing       = errors.New("upstream stage output missing")
)

// Reason keys used in run reports.
const (
	ReasonHardConstraint     = "hard_constraint"
	ReasonRepairExhausted    = "repair_exhausted"
	ReasonTemplateResolution = "template_resolution"
	ReasonAsset              = "asset"
	ReasonUnknown            = "unknown"
)

// UnitError ties a sentinel failure to the content unit or asset it
// concerns.
type UnitError struct {
	Err     error
	UnitID  string
	Message string
}

func (e *UnitError) Error() string {
	if e.UnitID == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Err.Error(), e.UnitID, e.Message)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

func New(sentinel error, unitID string, message string) *UnitError {
	return &UnitError{
		Err:     sentinel,
		UnitID:  unitID,
		Message: message,
	}
}

func Newf(sentinel error, unitID string, format string, args ...any) *UnitError {
	return &UnitError{
		Err:     sentinel,
		UnitID:  unitID,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsFatal reports whether err must abort the whole run rather than a single
// unit.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrIndexCorruption),
		errors.Is(err, ErrStageMissing):
		return true
	default:
		return false
	}
}

// Reason maps a per-unit error to the report's reason key.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrHardConstraint):
		return ReasonHardConstraint
	case errors.Is(err, ErrRepairExhausted):
		return ReasonRepairExhausted
	case errors.Is(err, ErrTemplateResolution):
		return ReasonTemplateResolution
	case errors.Is(err, ErrAsset):
		return ReasonAsset
	default:
		return ReasonUnknown
	}
}
