package announce

import (
	"errors"
	"fmt"
)

var (
	ErrTransientFetch    = errors.New("transient fetch error")
	ErrEmptyResult       = errors.New("nothing to announce")
	ErrValidation        = errors.New("validation error")
	ErrNotEligible       = errors.New("not eligible")
	ErrChannelResolution = errors.New("channel resolution error")
	ErrHistory           = errors.New("history fetch error")
	ErrDispatch          = errors.New("dispatch error")
	ErrPanic             = errors.New("cycle panicked")
)

type Stage string

const (
	StageFetching          Stage = "FETCHING"
	StageValidating        Stage = "VALIDATING"
	StageClassifying       Stage = "CLASSIFYING"
	StageResolvingChannel  Stage = "RESOLVING_CHANNEL"
	StageCheckingDuplicate Stage = "CHECKING_DUPLICATE"
	StageComposing         Stage = "COMPOSING"
	StageSending           Stage = "SENDING"
	StageDone              Stage = "DONE"
)

// AbortError ends a cycle. Kind is one of the Err* sentinels above and Err is
// the underlying cause, if any.
type AbortError struct {
	Feed   string
	Stage  Stage
	Kind   error
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("%s aborted at %s: %s", e.Feed, e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AbortError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindName returns a short label for the abort kind, used in logs and metrics.
func (e *AbortError) KindName() string {
	switch {
	case errors.Is(e.Kind, ErrTransientFetch):
		return "transient_fetch"
	case errors.Is(e.Kind, ErrEmptyResult):
		return "empty"
	case errors.Is(e.Kind, ErrValidation):
		return "validation"
	case errors.Is(e.Kind, ErrNotEligible):
		return "not_eligible"
	case errors.Is(e.Kind, ErrChannelResolution):
		return "channel_resolution"
	case errors.Is(e.Kind, ErrHistory):
		return "history"
	case errors.Is(e.Kind, ErrDispatch):
		return "dispatch"
	case errors.Is(e.Kind, ErrPanic):
		return "panic"
	default:
		return "unknown"
	}
}

// Abort builds an AbortError for the given stage. The feed name is filled in
// by the dispatcher.
func Abort(stage Stage, kind error, cause error, format string, args ...any) *AbortError {
	return &AbortError{
		Stage:  stage,
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
		Err:    cause,
	}
}

// isQuiet reports whether an abort is an expected outcome rather than a failure.
func isQuiet(err error) bool {
	return errors.Is(err, ErrNotEligible) || errors.Is(err, ErrEmptyResult)
}
