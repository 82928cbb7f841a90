package target

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies target-string and lookup failures.
type Kind uint8

const (
	KindMissingValue Kind = iota + 1
	KindInvalidFloatABI
	KindUnknownOption
	KindTargetLookup
)

func (k Kind) String() string {
	switch k {
	case KindMissingValue:
		return "missing-value"
	case KindInvalidFloatABI:
		return "invalid-float-abi"
	case KindUnknownOption:
		return "unknown-option"
	case KindTargetLookup:
		return "target-lookup"
	default:
		return "unknown"
	}
}

var (
	ErrMissingValue    = errors.New("missing option value")
	ErrInvalidFloatABI = errors.New("invalid float ABI")
	ErrUnknownOption   = errors.New("unknown option")
	ErrTargetLookup    = errors.New("target lookup failed")
)

// Error is returned by parsing and resolution. Token holds the offending
// input token (or key), Value the rejected value when there is one.
type Error struct {
	Kind   Kind
	Token  string
	Value  string
	Triple string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingValue:
		if strings.HasSuffix(e.Token, "=") {
			return fmt.Sprintf("invalid argument %s", e.Token)
		}
		return fmt.Sprintf("unspecified value for option %s", e.Token)
	case KindInvalidFloatABI:
		return fmt.Sprintf("invalid -mfloat-abi option %s", e.Value)
	case KindUnknownOption:
		return fmt.Sprintf("unknown option %s", e.Token)
	case KindTargetLookup:
		msg := "target lookup failed"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return fmt.Sprintf("%s target_triple=%s", msg, e.Triple)
	default:
		return "target: unknown error"
	}
}

// Unwrap exposes the sentinel for the kind and, if set, the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k Kind) sentinel() error {
	switch k {
	case KindMissingValue:
		return ErrMissingValue
	case KindInvalidFloatABI:
		return ErrInvalidFloatABI
	case KindUnknownOption:
		return ErrUnknownOption
	case KindTargetLookup:
		return ErrTargetLookup
	default:
		return nil
	}
}

// KindOf returns the Kind of err, or 0 when err is not a target error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
