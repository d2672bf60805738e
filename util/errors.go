package util

import "github.com/infigaming-com/go-membus/errors"

const (
	ErrCodeValueNotFoundInContext = 10000 + iota
	ErrCodeInvalidValueInContext
)

var (
	ErrValueNotFoundInContext = errors.NewError(ErrCodeValueNotFoundInContext, "value not found in context", nil)
	ErrInvalidValueInContext  = errors.NewError(ErrCodeInvalidValueInContext, "invalid value in context", nil)
)
