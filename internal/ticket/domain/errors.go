package domain

import "errors"

var (
	ErrNotFound         = errors.New("ticket not found")
	ErrStoreUnavailable = errors.New("ticket store unavailable")
	ErrPartialIssuance  = errors.New("partial ticket issuance")
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
)
