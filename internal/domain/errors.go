package domain

import "errors"

var (
	ErrLocked              = errors.New("certificate session locked")
	ErrInvalidPassphrase   = errors.New("invalid passphrase")
	ErrCorruptContainer    = errors.New("corrupt key container")
	ErrPlaceholderTooSmall = errors.New("signature placeholder too small")
	ErrCertificateMismatch = errors.New("container certificate does not match registry record")
	ErrCertificateUnusable = errors.New("certificate not usable for signing")
	ErrPolicyDenied        = errors.New("signing denied by policy")
	ErrNoSignature         = errors.New("no signature present")
	ErrNotFound            = errors.New("not found")
)
