package model

import (
	"errors"
	"fmt"
)

// ErrValidation marks bad input to a local operation. The target is left unchanged.
var ErrValidation = errors.New("validation failed")

var (
	ErrType  = fmt.Errorf("%w: wrong type", ErrValidation)
	ErrValue = fmt.Errorf("%w: invalid value", ErrValidation)
	ErrIndex = fmt.Errorf("%w: index out of range", ErrValidation)
)
