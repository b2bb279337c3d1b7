package processor

import (
	"testing"
	"time"

	"crmsync/internal/models"
	"crmsync/internal/remote"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, props map[string]string) remote.Record {
	return remote.Record{ExternalID: id, Properties: props, Raw: []byte(`{"id":"` + id + `"}`)}
}

func TestProcessBatch_ContactWithoutIdentifyingFieldsIsSilentlySkipped(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		record("1", map[string]string{"phone": "555-1234"}),
		record("2", map[string]string{"email": "only@example.com"}),
	}, models.EntityTypeContacts, "int-1", "hubspot", testNow)

	if len(res.Contacts) != 1 {
		t.Fatalf("contacts=%d want 1", len(res.Contacts))
	}
	if len(res.Errors) != 0 {
		t.Fatalf("errors=%v want none", res.Errors)
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped=%d want 1", res.Skipped)
	}
	if res.Contacts[0].ExternalID != "2" {
		t.Fatalf("kept wrong record: %s", res.Contacts[0].ExternalID)
	}
}

func TestProcessBatch_MissingExternalIDIsAnError(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		{Properties: map[string]string{"email": "x@y.com"}},
		record("2", map[string]string{"email": "kept@y.com"}),
	}, models.EntityTypeContacts, "int-1", "hubspot", testNow)

	if len(res.Errors) != 1 {
		t.Fatalf("errors=%d want 1", len(res.Errors))
	}
	if len(res.Contacts) != 1 {
		t.Fatalf("contacts=%d want 1, errors must not block the batch", len(res.Contacts))
	}
}

func TestProcessBatch_EmailLowercasedInvalidKept(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		record("1", map[string]string{"email": "  Ann.Lee@Example.COM  "}),
		record("2", map[string]string{"email": "not-an-email", "firstname": "Bo"}),
	}, models.EntityTypeContacts, "int-1", "hubspot", testNow)

	if len(res.Contacts) != 2 {
		t.Fatalf("contacts=%d want 2 (invalid email format must not discard data)", len(res.Contacts))
	}
	if got := *res.Contacts[0].Email; got != "ann.lee@example.com" {
		t.Fatalf("email=%q", got)
	}
	if got := *res.Contacts[1].Email; got != "not-an-email" {
		t.Fatalf("email=%q, record should keep the raw value", got)
	}
}

func TestProcessBatch_PhoneNormalization(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		record("1", map[string]string{"email": "a@b.co", "phone": "+1 (555) 010-2030"}),
	}, models.EntityTypeContacts, "int-1", "hubspot", testNow)

	if got := *res.Contacts[0].Phone; got != "+15550102030" {
		t.Fatalf("phone=%q", got)
	}
}

func TestProcessBatch_DealAmountParseFailureBecomesZero(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		record("d1", map[string]string{"dealname": "Big Deal", "amount": "abc"}),
		record("d2", map[string]string{"dealname": "Real Deal", "amount": "1250.50"}),
	}, models.EntityTypeDeals, "int-1", "hubspot", testNow)

	if len(res.Deals) != 2 {
		t.Fatalf("deals=%d want 2", len(res.Deals))
	}
	if !res.Deals[0].Amount.IsZero() {
		t.Fatalf("amount=%s want 0", res.Deals[0].Amount)
	}
	if res.Deals[1].Amount.String() != "1250.5" {
		t.Fatalf("amount=%s", res.Deals[1].Amount)
	}
}

func TestProcessBatch_CompanyIdentifiedByDomainAlone(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		record("c1", map[string]string{"domain": "Example.COM"}),
		record("c2", map[string]string{"industry": "logistics"}),
	}, models.EntityTypeCompanies, "int-1", "hubspot", testNow)

	if len(res.Companies) != 1 {
		t.Fatalf("companies=%d want 1", len(res.Companies))
	}
	if got := *res.Companies[0].Domain; got != "example.com" {
		t.Fatalf("domain=%q", got)
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped=%d want 1", res.Skipped)
	}
}

func TestProcessBatch_DatesDefaultToNow(t *testing.T) {
	p := &Processor{}
	rec := record("1", map[string]string{"email": "a@b.co"})
	rec.CreatedAt = "not-a-date"
	res := p.ProcessBatch([]remote.Record{rec}, models.EntityTypeContacts, "int-1", "hubspot", testNow)

	if !res.Contacts[0].RemoteCreated.Equal(testNow) {
		t.Fatalf("created=%s want now", res.Contacts[0].RemoteCreated)
	}
	if !res.Contacts[0].RemoteModified.Equal(testNow) {
		t.Fatalf("modified=%s want now", res.Contacts[0].RemoteModified)
	}
}

func TestProcessBatch_OutputPreservesInputOrder(t *testing.T) {
	p := &Processor{}
	res := p.ProcessBatch([]remote.Record{
		record("a", map[string]string{"email": "a@x.co"}),
		record("b", map[string]string{"email": "b@x.co"}),
		record("c", map[string]string{"email": "c@x.co"}),
	}, models.EntityTypeContacts, "int-1", "hubspot", testNow)

	want := []string{"a", "b", "c"}
	for i, c := range res.Contacts {
		if c.ExternalID != want[i] {
			t.Fatalf("order broken at %d: %s", i, c.ExternalID)
		}
	}
}
