package registry

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"crmsync/internal/crypto"
	"crmsync/internal/remote"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	dec, err := crypto.NewAESDecryptor("6368616e676520746869732070617373776f726420746f206120736563726574")
	if err != nil {
		t.Fatalf("decryptor: %v", err)
	}
	return Deps{
		HTTPClient: &http.Client{Timeout: time.Second},
		Requester:  remote.NewRequester(remote.DefaultRetryPolicy(), nil),
		Decryptor:  dec,
	}
}

func TestCreate_UnsupportedPlatform(t *testing.T) {
	r := New(testDeps(t))
	_, err := r.Create("salesforce", map[string]string{})
	var unsupported *UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err=%v want UnsupportedPlatformError", err)
	}
}

func TestCreate_MissingConfigListsAllFields(t *testing.T) {
	r := New(testDeps(t))
	_, err := r.Create("hubspot", map[string]string{})
	var missing *MissingConfigError
	if !errors.As(err, &missing) {
		t.Fatalf("err=%v want MissingConfigError", err)
	}
	if len(missing.Fields) != 1 || missing.Fields[0] != "api_key_encrypted" {
		t.Fatalf("fields=%v", missing.Fields)
	}
}

func TestCreate_HubSpot(t *testing.T) {
	r := New(testDeps(t))
	client, err := r.Create("HubSpot", map[string]string{"api_key_encrypted": "blob"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if client.Platform() != "hubspot" {
		t.Fatalf("platform=%q", client.Platform())
	}
}

func TestPlatformAccessors(t *testing.T) {
	r := New(testDeps(t))
	all := r.Platforms()
	if len(all) == 0 {
		t.Fatalf("no platforms registered")
	}
	crm := r.PlatformsByType(PlatformTypeCRM)
	if len(crm) != len(all) {
		t.Fatalf("crm=%d all=%d", len(crm), len(all))
	}
	if len(r.PlatformsByType("messaging")) != 0 {
		t.Fatalf("unexpected platforms for unknown type")
	}
}
