package entities

import "time"

type SigningMethod string

const (
	// MethodCard is the synchronous smart-card flow: the caller holds the
	// certificate and produces the signature locally.
	MethodCard SigningMethod = "card"
	// MethodPhone is the asynchronous SIM-based flow keyed by personal id
	// and phone number.
	MethodPhone SigningMethod = "phone"
	// MethodApp is the asynchronous app-based flow keyed by personal id and
	// country code.
	MethodApp SigningMethod = "app"
)

type FlowState string

const (
	StateInit          FlowState = "INIT"
	StateCertAcquired  FlowState = "CERT_ACQUIRED"
	StateSignRequested FlowState = "SIGN_REQUESTED"
	StatePolling       FlowState = "POLLING"
	StateSigned        FlowState = "SIGNED"
	StateFailed        FlowState = "FAILED"
	StateExpired       FlowState = "EXPIRED"
)

// Identity is the external strong identity a signing flow proves.
type Identity struct {
	PersonalID  string `json:"personal_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// SigningSession is the complete in-flight flow state. It never lives in
// server memory: it travels sealed inside the bearer token the caller
// presents on the next call.
type SigningSession struct {
	SessionID   string        `json:"session_id"`
	VoteID      string        `json:"vote_id"`
	UserID      string        `json:"user_id"`
	Method      SigningMethod `json:"method"`
	Identity    Identity      `json:"identity"`
	OptionIDs   []string      `json:"option_ids"`
	State       FlowState     `json:"state"`
	ProviderRef string        `json:"provider_ref,omitempty"`
	// PreparedContainer is the serialized to-be-signed container state.
	PreparedContainer []byte    `json:"prepared_container"`
	StartedAt         time.Time `json:"started_at"`
}
