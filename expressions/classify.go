package expressions

import (
	"errors"

	"github.com/zephyrtronium/livecalc"
)

// Classify maps an error from parsing or evaluation to the kind of error a
// calculator shows for it.
func Classify(err error) livecalc.ErrorKind {
	if err == nil {
		return livecalc.ErrNone
	}
	var (
		in InputError
		tl *TooLargeError
	)
	switch {
	case errors.As(err, &in):
		return livecalc.ErrSyntax
	case errors.As(err, &tl):
		return livecalc.ErrValueTooLarge
	default:
		return livecalc.ErrEngine
	}
}
