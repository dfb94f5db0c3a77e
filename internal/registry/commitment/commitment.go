// Package commitment derives the per-record data commitment. The digest binds
// the submitted fields to the owner at creation time; it is display-only and
// never re-verified against resubmitted data.
package commitment

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"visitid/internal/registry/models"
)

// Compute returns a deterministic digest over the owner and submitted fields.
// Identical inputs always yield the same digest; any differing field yields a
// different one. Fields are length-prefixed so adjacent values cannot collide
// by concatenation.
func Compute(owner models.OwnerAddress, fields models.RegistrationFields) string {
	h := sha256.New()
	for _, part := range []string{
		owner.String(),
		fields.Name,
		fields.DocumentNumber,
		fields.Contact,
		fields.Itinerary,
	} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
