package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// TransportKind classifies why an HTTP exchange could not complete.
type TransportKind string

const (
	TransportInvalidRequest    TransportKind = "invalid_request"
	TransportDNS               TransportKind = "dns"
	TransportConnectionRefused TransportKind = "connection_refused"
	TransportTLS               TransportKind = "tls"
	TransportTimeout           TransportKind = "timeout"
	TransportCanceled          TransportKind = "canceled"
	TransportOther             TransportKind = "other"
)

// TransportError reports that no response was received at all. It is never
// returned for a response with a non-2xx status.
type TransportError struct {
	URL  string
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GET %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the exchange ran out of time.
func (e *TransportError) Timeout() bool {
	return e.Kind == TransportTimeout
}

// HTTPError is the error form of a completed exchange with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func classifyTransport(err error) TransportKind {
	switch {
	case errors.Is(err, context.Canceled):
		return TransportCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return TransportTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return TransportConnectionRefused
	}
	if isTLSError(err) {
		return TransportTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}
	return TransportOther
}

func isTLSError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var authorityErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}
