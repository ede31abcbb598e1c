package service

import (
	"errors"

	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
)

var (
	ErrValidation     = errors.New("validation")
	ErrConflict       = errors.New("user already exist")
	ErrAuthentication = errors.New("invalid username or password")
	// ErrInvalidToken covers bad signature, expiry, wrong type and revocation.
	ErrInvalidToken = tokens.ErrInvalid
	ErrInternal     = errors.New("internal error")
)
