package crypto

import (
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestRoundTrip(t *testing.T) {
	d, err := NewAESDecryptor(testKey)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	blob, err := d.Encrypt("pat-na1-0000")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := d.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "pat-na1-0000" {
		t.Fatalf("plain=%q", plain)
	}
}

func TestBadKeyLength(t *testing.T) {
	if _, err := NewAESDecryptor("deadbeef"); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestTamperedBlobFails(t *testing.T) {
	d, _ := NewAESDecryptor(testKey)
	blob, _ := d.Encrypt("secret")
	tampered := strings.Replace(blob, blob[:1], "A", 1)
	if tampered == blob {
		tampered = "B" + blob[1:]
	}
	if _, err := d.Decrypt(tampered); err == nil {
		t.Fatalf("expected decrypt failure")
	}
}
