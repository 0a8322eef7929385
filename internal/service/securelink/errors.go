package securelink

import "errors"

// Sentinel errors for the secure-link service layer.
var (
	ErrNotFound = errors.New("secure link not found")
	ErrRevoked  = errors.New("secure link revoked")
)
