package audit

import (
	"strings"
	"testing"
)

func TestSessionKeyDeterministic(t *testing.T) {
	a := NewSessionKey("JSESSIONID=ABC123; other=1")
	b := NewSessionKey("JSESSIONID=ABC123; other=1")

	if a.Hash() != b.Hash() {
		t.Errorf("Equal cookies produced different keys: %s vs %s", a.Hash(), b.Hash())
	}
}

func TestSessionKeyDistinct(t *testing.T) {
	a := NewSessionKey("JSESSIONID=ABC123")
	b := NewSessionKey("JSESSIONID=ABC124")

	if a.Hash() == b.Hash() {
		t.Error("Different cookies produced the same key")
	}
}

func TestSessionKeyHashLength(t *testing.T) {
	key := NewSessionKey("some-cookie-value")

	// 16 bytes hex-encoded
	if len(key.Hash()) != 32 {
		t.Errorf("Expected 32-char hash, got %d chars", len(key.Hash()))
	}
}

func TestSessionKeyStringRedacts(t *testing.T) {
	key := NewSessionKey("secret-session-token")
	s := key.String()

	if !strings.HasSuffix(s, "...") {
		t.Errorf("Expected truncated display form, got %q", s)
	}
	if len(s) != 11 { // 8 hex chars + "..."
		t.Errorf("Expected 11-char display form, got %q", s)
	}
	if strings.Contains(s, "secret") {
		t.Errorf("Display form leaked cookie material: %q", s)
	}
}

func TestSessionKeyFromJSESSIONID(t *testing.T) {
	a := NewSessionKeyFromJSESSIONID("node01abc")
	b := NewSessionKey("node01abc")

	if a.Hash() != b.Hash() {
		t.Error("JSESSIONID constructor diverged from raw constructor")
	}
}
