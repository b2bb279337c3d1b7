// Package processor validates and normalizes heterogeneous remote CRM
// payloads into the canonical local shapes. A bad record never fails the
// batch; it is skipped or reported and the batch continues.
package processor

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crmsync/internal/models"
	"crmsync/internal/remote"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Processor struct {
	Logger *zap.Logger
}

// RecordError is one per-record failure inside an otherwise successful batch.
type RecordError struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// Result is the outcome of one batch. Normalized slices preserve input order;
// Skipped counts records dropped for having no identifying fields, which is
// deliberate data hygiene, not an error.
type Result struct {
	Contacts  []models.Contact
	Companies []models.Company
	Deals     []models.Deal
	Skipped   int
	Errors    []RecordError
}

// ProcessBatch normalizes one page of raw records for the given entity type.
func (p *Processor) ProcessBatch(records []remote.Record, entityType, integrationID, platform string, now time.Time) Result {
	result := Result{}
	for _, rec := range records {
		if rec.ExternalID == "" {
			p.warn("record without external id", entityType, "")
			result.Errors = append(result.Errors, RecordError{Message: "missing external id"})
			continue
		}
		switch entityType {
		case models.EntityTypeContacts:
			contact, ok := p.normalizeContact(rec, integrationID, platform, now)
			if !ok {
				result.Skipped++
				continue
			}
			result.Contacts = append(result.Contacts, contact)
		case models.EntityTypeCompanies:
			company, ok := p.normalizeCompany(rec, integrationID, platform, now)
			if !ok {
				result.Skipped++
				continue
			}
			result.Companies = append(result.Companies, company)
		case models.EntityTypeDeals:
			deal, ok := p.normalizeDeal(rec, integrationID, platform, now)
			if !ok {
				result.Skipped++
				continue
			}
			result.Deals = append(result.Deals, deal)
		default:
			result.Errors = append(result.Errors, RecordError{
				ExternalID: rec.ExternalID,
				Message:    "unsupported entity type: " + entityType,
			})
		}
	}
	return result
}

func (p *Processor) normalizeContact(rec remote.Record, integrationID, platform string, now time.Time) (models.Contact, bool) {
	email := strings.TrimSpace(rec.Properties["email"])
	first := strings.TrimSpace(rec.Properties["firstname"])
	last := strings.TrimSpace(rec.Properties["lastname"])
	if email == "" && first == "" && last == "" {
		// Nothing identifies this contact; dropping beats storing a husk.
		p.warn("contact has no identifying fields, skipping", models.EntityTypeContacts, rec.ExternalID)
		return models.Contact{}, false
	}
	if email != "" {
		email = strings.ToLower(email)
		if !emailPattern.MatchString(email) {
			p.warn("contact email has invalid format, keeping record", models.EntityTypeContacts, rec.ExternalID)
		}
	}
	return models.Contact{
		IntegrationID:  integrationID,
		ExternalID:     rec.ExternalID,
		Platform:       platform,
		Email:          strPtr(email),
		FirstName:      strPtr(first),
		LastName:       strPtr(last),
		Phone:          strPtr(normalizePhone(rec.Properties["phone"])),
		Company:        strPtr(strings.TrimSpace(rec.Properties["company"])),
		RemoteCreated:  parseRemoteTime(rec.CreatedAt, now),
		RemoteModified: parseRemoteTime(rec.UpdatedAt, now),
		LastSeenAt:     now,
		RawJSON:        rawJSON(rec),
	}, true
}

func (p *Processor) normalizeCompany(rec remote.Record, integrationID, platform string, now time.Time) (models.Company, bool) {
	name := strings.TrimSpace(rec.Properties["name"])
	domain := strings.ToLower(strings.TrimSpace(rec.Properties["domain"]))
	if name == "" && domain == "" {
		p.warn("company has no identifying fields, skipping", models.EntityTypeCompanies, rec.ExternalID)
		return models.Company{}, false
	}
	return models.Company{
		IntegrationID:  integrationID,
		ExternalID:     rec.ExternalID,
		Platform:       platform,
		Name:           strPtr(name),
		Domain:         strPtr(domain),
		Industry:       strPtr(strings.TrimSpace(rec.Properties["industry"])),
		Phone:          strPtr(normalizePhone(rec.Properties["phone"])),
		RemoteCreated:  parseRemoteTime(rec.CreatedAt, now),
		RemoteModified: parseRemoteTime(rec.UpdatedAt, now),
		LastSeenAt:     now,
		RawJSON:        rawJSON(rec),
	}, true
}

func (p *Processor) normalizeDeal(rec remote.Record, integrationID, platform string, now time.Time) (models.Deal, bool) {
	name := strings.TrimSpace(rec.Properties["dealname"])
	if name == "" {
		p.warn("deal has no identifying fields, skipping", models.EntityTypeDeals, rec.ExternalID)
		return models.Deal{}, false
	}
	amount := decimal.Zero
	if raw := strings.TrimSpace(rec.Properties["amount"]); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			p.warn("deal amount is not numeric, using 0", models.EntityTypeDeals, rec.ExternalID)
		} else {
			amount = parsed
		}
	}
	return models.Deal{
		IntegrationID:  integrationID,
		ExternalID:     rec.ExternalID,
		Platform:       platform,
		Name:           strPtr(name),
		Amount:         amount,
		Stage:          strPtr(strings.TrimSpace(rec.Properties["dealstage"])),
		CloseDate:      parseOptionalTime(rec.Properties["closedate"]),
		RemoteCreated:  parseRemoteTime(rec.CreatedAt, now),
		RemoteModified: parseRemoteTime(rec.UpdatedAt, now),
		LastSeenAt:     now,
		RawJSON:        rawJSON(rec),
	}, true
}

// normalizePhone strips everything but digits, keeping a single leading +.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseRemoteTime falls back to now for missing or unparsable timestamps.
func parseRemoteTime(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return now
	}
	return t.UTC()
}

func parseOptionalTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func rawJSON(rec remote.Record) datatypes.JSON {
	if len(rec.Raw) == 0 {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(rec.Raw)
}

func (p *Processor) warn(msg, entityType, externalID string) {
	if p.Logger == nil {
		return
	}
	p.Logger.Warn(msg,
		zap.String("entity_type", entityType),
		zap.String("external_id", externalID),
	)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
