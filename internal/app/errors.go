package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnsupportedModel = errors.New("unsupported model identifier")
)
