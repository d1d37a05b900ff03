package connerr

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
)

func TestIsFatal(t *testing.T) {
	transient := []Kind{NetworkError, EncryptionError, CustomTemporary}
	for _, k := range transient {
		if IsFatal(k) {
			t.Errorf("IsFatal(%s) = true, want false", k)
		}
	}
	fatal := []Kind{
		InvalidUsername, AuthenticationFailed, AuthenticationImpossible,
		NoSSLSupport, NameInUse, InvalidSettings, CertNotProvided,
		CertUntrusted, CertExpired, CertNotActivated, CertHostnameMismatch,
		CertFingerprintMismatch, CertSelfSigned, CertOtherError, CustomFatal,
		OtherError, Kind(99),
	}
	for _, k := range fatal {
		if !IsFatal(k) {
			t.Errorf("IsFatal(%s) = false, want true", k)
		}
	}
}

func TestCoerce(t *testing.T) {
	if k, coerced := Coerce(AuthenticationFailed); k != AuthenticationFailed || coerced {
		t.Errorf("Coerce(valid) = (%s, %v)", k, coerced)
	}
	if k, coerced := Coerce(Kind(42)); k != OtherError || !coerced {
		t.Errorf("Coerce(42) = (%s, %v), want (other_error, true)", k, coerced)
	}
	if info := NewInfo(Kind(42), "x"); info.Kind != OtherError {
		t.Errorf("NewInfo coerced kind = %s", info.Kind)
	}
}

func TestParseKind(t *testing.T) {
	for k := NetworkError; k <= OtherError; k++ {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = (%s, %v)", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Error("ParseKind(bogus) ok")
	}
}

func TestInfoEqual(t *testing.T) {
	a := NewInfo(NetworkError, "down")
	b := NewInfo(NetworkError, "down")
	c := NewInfo(NetworkError, "up")
	var none *Info

	if !a.Equal(b) {
		t.Error("identical infos not equal")
	}
	if a.Equal(c) {
		t.Error("different descriptions equal")
	}
	if a.Equal(none) || none.Equal(a) {
		t.Error("nil equal to non-nil")
	}
	if !none.Equal(nil) {
		t.Error("nil not equal to nil")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   Kind
		wantOK bool
	}{
		{"nil", nil, 0, false},
		{"cancelled", context.Canceled, 0, false},
		{"wrapped cancel", fmt.Errorf("dial: %w", context.Canceled), 0, false},
		{"explicit kind", Wrap(AuthenticationFailed, errors.New("bad password")), AuthenticationFailed, true},
		{"explicit out of range", &Error{Kind: 77, Err: errors.New("x")}, OtherError, true},
		{"eof", io.EOF, NetworkError, true},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, NetworkError, true},
		{"deadline", context.DeadlineExceeded, NetworkError, true},
		{"unknown authority", x509.UnknownAuthorityError{}, CertUntrusted, true},
		{"hostname", x509.HostnameError{Host: "example.com"}, CertHostnameMismatch, true},
		{"expired", x509.CertificateInvalidError{Reason: x509.Expired}, CertExpired, true},
		{"cert other", x509.CertificateInvalidError{Reason: x509.NotAuthorizedToSign}, CertOtherError, true},
		{"other", errors.New("mystery"), OtherError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	info, ok := Describe(io.ErrUnexpectedEOF)
	if !ok {
		t.Fatal("Describe(EOF) ignored")
	}
	if info.Kind != NetworkError || info.Description != io.ErrUnexpectedEOF.Error() {
		t.Errorf("Describe() = %v", info)
	}
	if _, ok := Describe(context.Canceled); ok {
		t.Error("Describe(cancel) not ignored")
	}
}
