package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrLengthMismatch = errors.New("chunks and vectors length mismatch")
	ErrInvalidVerdict = errors.New("invalid judge verdict")
)
