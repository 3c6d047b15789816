package errors

import "errors"

var (
	ErrInvalidVoteInput     = errors.New("invalid vote input")
	ErrInvalidOptionCount   = errors.New("option count outside vote choice bounds")
	ErrReservedOptionPrefix = errors.New("option value uses a reserved prefix")
	ErrReservedOptionValue  = errors.New("reserved option value must be cast alone")
	ErrOptionsTooSimilar    = errors.New("option values are too similar to be distinguishable")
	ErrMalformedDeadline    = errors.New("vote deadline is malformed")
	ErrVoteNotFound         = errors.New("vote not found")
	ErrOptionNotFound       = errors.New("vote option not found")
	ErrVoteNotDraft         = errors.New("vote is no longer editable")
	ErrVoteClosed           = errors.New("vote is closed")
	ErrVoteNotEnded         = errors.New("vote has not ended")
	ErrDelegationNotAllowed = errors.New("delegation is not allowed on this vote")
	ErrDelegationCycle      = errors.New("delegation would create a cycle")
	ErrDelegationNotFound   = errors.New("delegation not found")
	ErrSelfDelegation       = errors.New("cannot delegate to yourself")
	ErrContainerNotFound    = errors.New("signed container not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrConflict             = errors.New("ballot conflict")
)
