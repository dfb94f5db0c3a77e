package models

import (
	"strings"
	"time"

	dErrors "visitid/pkg/domain-errors"
)

// RecordID is the ledger-issued identifier of an identity record. IDs form a
// dense prefix of the positive integers in issuance order; 0 means "none".
type RecordID int64

// OwnerAddress is the caller identity a record is bound to. At most one active
// record exists per owner.
type OwnerAddress string

// NormalizeOwner canonicalizes an owner address for index lookups.
func NormalizeOwner(raw string) OwnerAddress {
	return OwnerAddress(strings.ToLower(strings.TrimSpace(raw)))
}

func (o OwnerAddress) String() string { return string(o) }
func (o OwnerAddress) IsZero() bool   { return o == "" }

// RegistrationFields are the free-text fields supplied at registration.
// Immutable after creation.
type RegistrationFields struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	Contact        string `json:"contact"`
	Itinerary      string `json:"itinerary"`
}

// defaultItinerary mirrors the registration form's fallback value.
const defaultItinerary = "Standard tourism package"

// Normalize trims fields and applies the itinerary fallback.
func (f *RegistrationFields) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.DocumentNumber = strings.TrimSpace(f.DocumentNumber)
	f.Contact = strings.TrimSpace(f.Contact)
	f.Itinerary = strings.TrimSpace(f.Itinerary)
	if f.Itinerary == "" {
		f.Itinerary = defaultItinerary
	}
}

// Validate enforces record invariants at the boundary.
func (f RegistrationFields) Validate() error {
	if f.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if f.DocumentNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "document number is required")
	}
	if f.Contact == "" {
		return dErrors.New(dErrors.CodeValidation, "contact is required")
	}
	return nil
}

// IdentityRecord is the ledger's unit of storage. Fields are fixed at
// creation; IsActive is set true on issue and no operation clears it.
type IdentityRecord struct {
	ID             RecordID     `json:"id"`
	Owner          OwnerAddress `json:"owner"`
	Name           string       `json:"name"`
	DocumentNumber string       `json:"documentNumber"`
	Contact        string       `json:"contact"`
	Itinerary      string       `json:"itinerary"`
	Commitment     string       `json:"commitment"`
	IsActive       bool         `json:"isActive"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Receipt confirms a committed registration. It is the write's direct result;
// observers receive the same receipt over the confirmation channel.
type Receipt struct {
	ID         RecordID     `json:"id"`
	Owner      OwnerAddress `json:"owner"`
	Commitment string       `json:"commitment"`
	IssuedAt   time.Time    `json:"issuedAt"`
}
