package upgrade

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func validUpgradeRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	r.Header.Set("Sec-WebSocket-Version", "13")
	return r
}

func TestAcceptKeyMatchesRFCExample(t *testing.T) {
	// RFC 6455 section 1.3 worked example.
	got := acceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("acceptKey() = %q, want %q", got, want)
	}
}

func TestValidateRejectsMissingUpgradeHeader(t *testing.T) {
	r := validUpgradeRequest()
	r.Header.Del("Upgrade")
	if err := validate(r); err != ErrInvalidUpgradeHeaders {
		t.Fatalf("validate() = %v, want ErrInvalidUpgradeHeaders", err)
	}
}

func TestValidateRejectsMissingKey(t *testing.T) {
	r := validUpgradeRequest()
	r.Header.Del("Sec-WebSocket-Key")
	if err := validate(r); err != ErrMissingWebSocketKey {
		t.Fatalf("validate() = %v, want ErrMissingWebSocketKey", err)
	}
}

func TestValidateRejectsBadVersion(t *testing.T) {
	r := validUpgradeRequest()
	r.Header.Set("Sec-WebSocket-Version", "8")
	if err := validate(r); err != ErrBadWebSocketVersion {
		t.Fatalf("validate() = %v, want ErrBadWebSocketVersion", err)
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	if err := validate(validUpgradeRequest()); err != nil {
		t.Fatalf("validate() = %v, want nil", err)
	}
}

func TestNegotiatedDetectsPermessageDeflate(t *testing.T) {
	r := validUpgradeRequest()
	r.Header.Set("Sec-WebSocket-Extensions", "permessage-deflate; client_max_window_bits")
	if !Negotiated(r) {
		t.Fatal("Negotiated() = false, want true")
	}
}

func TestNegotiatedRejectsOtherExtension(t *testing.T) {
	r := validUpgradeRequest()
	r.Header.Set("Sec-WebSocket-Extensions", "x-webkit-deflate-frame")
	if Negotiated(r) {
		t.Fatal("Negotiated() = true, want false")
	}
}

func TestNegotiatedFalseWhenHeaderAbsent(t *testing.T) {
	if Negotiated(validUpgradeRequest()) {
		t.Fatal("Negotiated() = true, want false")
	}
}
