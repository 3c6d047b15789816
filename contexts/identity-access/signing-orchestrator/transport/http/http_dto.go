package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InitSigningRequest starts a flow. CertDER is base64 DER and only used by
// the card method; the phone method needs personal_id + phone_number; the app
// method needs personal_id + country_code.
type InitSigningRequest struct {
	Method      string   `json:"method"`
	OptionIDs   []string `json:"option_ids"`
	CertDER     string   `json:"cert_der,omitempty"`
	PersonalID  string   `json:"personal_id,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
}

type CompleteSigningRequest struct {
	Token          string `json:"token"`
	SignatureValue string `json:"signature_value"`
}

type PollSigningRequest struct {
	Token     string `json:"token"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

type SigningStatusResponse struct {
	State            string `json:"state"`
	Token            string `json:"token,omitempty"`
	SignableHash     string `json:"signable_hash,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
}
