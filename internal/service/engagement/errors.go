package engagement

import "errors"

// Sentinel errors for the engagement service layer.
var (
	ErrNotFound = errors.New("engagement not found")
)
