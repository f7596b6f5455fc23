package security

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignAndParseRoundTrip(t *testing.T) {
	mgr := NewJWTManager("campuslink", "campuslink-api", testSecret)

	token, err := mgr.Sign("42", "student", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" || claims.Role != "student" {
		t.Fatalf("unexpected claims: subject=%q role=%q", claims.Subject, claims.Role)
	}
}

func TestParseExpiredToken(t *testing.T) {
	mgr := NewJWTManager("campuslink", "campuslink-api", testSecret)
	token, err := mgr.Sign("42", "student", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	mgr := NewJWTManager("campuslink", "campuslink-api", testSecret)
	other := NewJWTManager("campuslink", "campuslink-api", "ffffffffffffffffffffffffffffffff")

	token, err := other.Sign("42", "student", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("campuslink", "campuslink-api", testSecret)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := mgr.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", raw, err)
		}
	}
}

func TestParseRejectsWrongAudience(t *testing.T) {
	mgr := NewJWTManager("campuslink", "campuslink-api", testSecret)
	other := NewJWTManager("campuslink", "another-api", testSecret)

	token, err := other.Sign("42", "student", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
