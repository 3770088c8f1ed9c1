package models

import "errors"

// Configuration errors, raised before any I/O.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Input integrity errors, raised after enumeration and before prediction.
var (
	ErrInputCount   = errors.New("unexpected number of input files")
	ErrHashMismatch = errors.New("image hashes do not match")
	ErrNoCases      = errors.New("could not load any cases")
	ErrDecode       = errors.New("could not decode image")
)

// Contract violations of the prediction output, raised before writing.
var (
	ErrSchemaViolation = errors.New("prediction violates output schema")
	ErrShapeMismatch   = errors.New("prediction output must have the same shape as the main input image")
)
