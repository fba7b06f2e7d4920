package http

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHostAuthVerifiesBearerToken(t *testing.T) {
	auth := NewHostAuth(testSecret)

	req := httptest.NewRequest("GET", "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+hostToken(t, "host-7"))
	id, err := auth.HostID(req)
	if err != nil || id != "host-7" {
		t.Fatalf("expected host-7, got %q %v", id, err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "host-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, _ := expired.SignedString([]byte(testSecret))
	req = httptest.NewRequest("GET", "/ws?token="+signed, nil)
	if _, err := auth.HostID(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "host-7"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	req = httptest.NewRequest("GET", "/ws?token="+unsigned, nil)
	if _, err := auth.HostID(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected unsigned token rejected, got %v", err)
	}
}

func TestHostAuthDisabledTrustsHeader(t *testing.T) {
	auth := NewHostAuth("")
	req := httptest.NewRequest("GET", "/ws?hostId=host-q", nil)
	if id, err := auth.HostID(req); err != nil || id != "host-q" {
		t.Fatalf("expected query host id, got %q %v", id, err)
	}
	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Host-ID", "host-h")
	if id, err := auth.HostID(req); err != nil || id != "host-h" {
		t.Fatalf("expected header host id, got %q %v", id, err)
	}
	if _, err := auth.HostID(httptest.NewRequest("GET", "/ws", nil)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected errUnauthorized without identity, got %v", err)
	}
}
