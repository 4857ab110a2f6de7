package domain

import "time"

type Verdict string

const (
	VerdictValid    Verdict = "valid"
	VerdictInvalid  Verdict = "invalid"
	VerdictUnsigned Verdict = "unsigned"
)

type ReasonCode string

const (
	ReasonCertificateUnknown                 ReasonCode = "certificate_unknown"
	ReasonCertificateOutOfValidityOrInactive ReasonCode = "certificate_out_of_validity_or_inactive"
	ReasonCertificateRevoked                 ReasonCode = "certificate_revoked"
	ReasonSignatureMismatch                  ReasonCode = "signature_does_not_match_digest"
)

// VerificationResult is the single verdict produced by signature verification.
// Reason is empty only when Verdict is valid. Certificate is the snapshot the
// decision was made against, evaluated at CheckedAt: a certificate that has
// expired, been deactivated or been revoked since signing invalidates past
// signatures under this policy.
type VerificationResult struct {
	Verdict     Verdict      `json:"verdict"`
	Reason      ReasonCode   `json:"reason,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	Certificate *Certificate `json:"-"`
	CheckedAt   time.Time    `json:"checked_at"`
}

func (r VerificationResult) Valid() bool {
	return r.Verdict == VerdictValid
}
