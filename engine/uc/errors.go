package uc

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrToolNotFound = errors.New("tool not found")
)
