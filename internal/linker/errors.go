package linker

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidTokenType     = errors.New("invalid token type")
	ErrPreparationFailed    = errors.New("deposit preparation failed")
	ErrSigningFailed        = errors.New("transaction signing failed")
	ErrLinkResolutionFailed = errors.New("link resolution failed")
)
