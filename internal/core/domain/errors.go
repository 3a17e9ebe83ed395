// internal/core/domain/errors.go
package domain

import "errors"

// Errores de dominio comunes.
var (
	// Target errors
	ErrEmptyTarget   = errors.New("target cannot be empty")
	ErrInvalidTarget = errors.New("invalid target")
	ErrInvalidMode   = errors.New("invalid scan mode")

	// Unit errors
	ErrUnitNotFound   = errors.New("unit not found")
	ErrNoUnitsEnabled = errors.New("no units enabled")
	ErrUnitFailed     = errors.New("unit execution failed")

	// Run errors
	ErrRunCanceled = errors.New("run was canceled")
	ErrRunTimeout  = errors.New("run timeout exceeded")
)
