package errors

import "errors"

// Validation and flow errors.
var (
	ErrInvalidSigningInput = errors.New("invalid signing input")
	ErrVoteNotStrong       = errors.New("vote does not require strong identity")
	ErrVoteClosed          = errors.New("vote is closed")
	ErrSessionInvalid      = errors.New("signing session token is invalid")
	ErrSessionExpired      = errors.New("signing session token has expired")
	ErrWrongFlowState      = errors.New("operation does not match the flow state")
)

// Identity binding conflicts. Fatal to the flow, never retried.
var (
	ErrIdentityAlreadyBound = errors.New("external identity is already connected to another account")
	ErrAccountAlreadyBound  = errors.New("account is already connected to another identity")
)

// Closed provider error taxonomy. Provider-specific failure codes map onto
// exactly these.
var (
	ErrUserCancelled        = errors.New("user cancelled the signing request")
	ErrPhoneUnreachable     = errors.New("phone is unreachable")
	ErrCertificateSuspended = errors.New("certificate is suspended")
	ErrCertificateRevoked   = errors.New("certificate is revoked")
	ErrCertificateExpired   = errors.New("certificate has expired")
	ErrDeliveryError        = errors.New("signing request delivery failed")
	ErrPollTimeout          = errors.New("signing status poll timed out")
	ErrProviderUnknown      = errors.New("unexpected provider response")
)
