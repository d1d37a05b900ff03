// Package connerr classifies connection failures.
//
// A fatal kind means the account needs user attention before it may
// connect again; transient kinds allow automatic reconnection.
package connerr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Kind is a connection error reason. The numeric values are persisted in
// accounts.xml and must not be reordered.
type Kind uint

const (
	NetworkError Kind = iota
	InvalidUsername
	AuthenticationFailed
	AuthenticationImpossible
	NoSSLSupport
	EncryptionError
	NameInUse
	InvalidSettings
	CertNotProvided
	CertUntrusted
	CertExpired
	CertNotActivated
	CertHostnameMismatch
	CertFingerprintMismatch
	CertSelfSigned
	CertOtherError
	CustomTemporary
	CustomFatal
	OtherError
)

var kindNames = [...]string{
	NetworkError:             "network_error",
	InvalidUsername:          "invalid_username",
	AuthenticationFailed:     "authentication_failed",
	AuthenticationImpossible: "authentication_impossible",
	NoSSLSupport:             "no_ssl_support",
	EncryptionError:          "encryption_error",
	NameInUse:                "name_in_use",
	InvalidSettings:          "invalid_settings",
	CertNotProvided:          "cert_not_provided",
	CertUntrusted:            "cert_untrusted",
	CertExpired:              "cert_expired",
	CertNotActivated:         "cert_not_activated",
	CertHostnameMismatch:     "cert_hostname_mismatch",
	CertFingerprintMismatch:  "cert_fingerprint_mismatch",
	CertSelfSigned:           "cert_self_signed",
	CertOtherError:           "cert_other_error",
	CustomTemporary:          "custom_temporary",
	CustomFatal:              "custom_fatal",
	OtherError:               "other_error",
}

func (k Kind) String() string {
	if k > OtherError {
		return "kind(" + strconv.FormatUint(uint64(k), 10) + ")"
	}
	return kindNames[k]
}

// ParseKind maps a name produced by String back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return OtherError, false
}

// Valid reports whether k is inside the known range.
func (k Kind) Valid() bool {
	return k <= OtherError
}

// Coerce maps out-of-range kinds to OtherError. The second result reports
// whether coercion happened so callers can log it.
func Coerce(k Kind) (Kind, bool) {
	if k.Valid() {
		return k, false
	}
	return OtherError, true
}

// IsFatal reports whether an error of this kind should suppress automatic
// reconnection.
func IsFatal(k Kind) bool {
	switch k {
	case NetworkError, EncryptionError, CustomTemporary:
		return false
	default:
		return true
	}
}

// Info is a recorded connection error.
type Info struct {
	Kind        Kind
	Description string
}

// NewInfo returns an Info with k coerced into range.
func NewInfo(k Kind, description string) *Info {
	k, _ = Coerce(k)
	return &Info{Kind: k, Description: description}
}

// Equal reports whether two infos carry the same kind and description.
// Two nil infos are equal.
func (i *Info) Equal(o *Info) bool {
	if i == nil || o == nil {
		return i == o
	}
	return i.Kind == o.Kind && i.Description == o.Description
}

// Fatal reports whether the recorded kind is fatal.
func (i *Info) Fatal() bool {
	return i != nil && IsFatal(i.Kind)
}

func (i *Info) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Description)
}

// Error is a Go error carrying an explicit Kind. Protocol backends return
// it when they know the reason precisely.
type Error struct {
	Kind Kind
	Err  error
}

// New returns an *Error of kind k with message msg.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Err: errors.New(msg)}
}

// Wrap returns an *Error of kind k wrapping err.
func Wrap(k Kind, err error) *Error {
	return &Error{Kind: k, Err: err}
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Classify maps a Go error to a connection error kind. The second result
// is false when the error is a cancellation, which is not a connection
// error and must be ignored.
func Classify(err error) (Kind, bool) {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0, false
	}

	var kinded *Error
	if errors.As(err, &kinded) {
		k, _ := Coerce(kinded.Kind)
		return k, true
	}

	if k, ok := classifyTLS(err); ok {
		return k, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.DeadlineExceeded) {
		return NetworkError, true
	}

	return OtherError, true
}

func classifyTLS(err error) (Kind, bool) {
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return CertUntrusted, true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return CertHostnameMismatch, true
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		switch invalid.Reason {
		case x509.Expired:
			return CertExpired, true
		default:
			return CertOtherError, true
		}
	}
	var verification *tls.CertificateVerificationError
	if errors.As(err, &verification) {
		return CertOtherError, true
	}
	var record tls.RecordHeaderError
	if errors.As(err, &record) {
		return EncryptionError, true
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return EncryptionError, true
	}
	return 0, false
}

// Describe returns the kind and description to record for err, or false
// when err should be ignored.
func Describe(err error) (*Info, bool) {
	k, ok := Classify(err)
	if !ok {
		return nil, false
	}
	return NewInfo(k, err.Error()), true
}
