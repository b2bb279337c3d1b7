package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	EntityTypeContacts  = "contacts"
	EntityTypeCompanies = "companies"
	EntityTypeDeals     = "deals"
)

// Contact is a normalized remote CRM contact. The original remote payload is
// kept in RawJSON for diagnostics.
type Contact struct {
	IntegrationID  string         `gorm:"primaryKey;type:text"`
	ExternalID     string         `gorm:"primaryKey;type:text"`
	Platform       string         `gorm:"index;type:text;not null"`
	Email          *string        `gorm:"index;type:text"`
	FirstName      *string        `gorm:"type:text"`
	LastName       *string        `gorm:"type:text"`
	Phone          *string        `gorm:"type:text"`
	Company        *string        `gorm:"type:text"`
	RemoteCreated  time.Time      `gorm:"type:timestamptz;not null"`
	RemoteModified time.Time      `gorm:"type:timestamptz;not null"`
	LastSeenAt     time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON        datatypes.JSON `gorm:"type:jsonb"`
}

func (Contact) TableName() string {
	return "remote_contacts"
}

// Company is a normalized remote CRM company.
type Company struct {
	IntegrationID  string         `gorm:"primaryKey;type:text"`
	ExternalID     string         `gorm:"primaryKey;type:text"`
	Platform       string         `gorm:"index;type:text;not null"`
	Name           *string        `gorm:"type:text"`
	Domain         *string        `gorm:"index;type:text"`
	Industry       *string        `gorm:"type:text"`
	Phone          *string        `gorm:"type:text"`
	RemoteCreated  time.Time      `gorm:"type:timestamptz;not null"`
	RemoteModified time.Time      `gorm:"type:timestamptz;not null"`
	LastSeenAt     time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON        datatypes.JSON `gorm:"type:jsonb"`
}

func (Company) TableName() string {
	return "remote_companies"
}

// Deal is a normalized remote CRM deal. Amount is stored as decimal, never float.
type Deal struct {
	IntegrationID  string          `gorm:"primaryKey;type:text"`
	ExternalID     string          `gorm:"primaryKey;type:text"`
	Platform       string          `gorm:"index;type:text;not null"`
	Name           *string         `gorm:"type:text"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Stage          *string         `gorm:"index;type:text"`
	CloseDate      *time.Time      `gorm:"type:timestamptz"`
	RemoteCreated  time.Time       `gorm:"type:timestamptz;not null"`
	RemoteModified time.Time       `gorm:"type:timestamptz;not null"`
	LastSeenAt     time.Time       `gorm:"type:timestamptz;not null"`
	RawJSON        datatypes.JSON  `gorm:"type:jsonb"`
}

func (Deal) TableName() string {
	return "remote_deals"
}
