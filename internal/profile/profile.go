// Package profile folds per-document extraction results into one applicant
// profile and scores that profile against the registry checklist.
//
// Everything in this package is pure: functions never mutate their inputs,
// keep no state between calls and are safe for concurrent use.
package profile

import "github.com/regdocs/regdocs-backend/internal/docprocessing/domain"

// UnknownCandidate is the full name used before any document contributes identity
const UnknownCandidate = "unknown candidate"

// Slot holds at most one document's data plus the file that last contributed to it.
// SourceFileID is set if and only if Data is set.
type Slot[T any] struct {
	Data         *T     `json:"data"`
	SourceFileID string `json:"source_file_id,omitempty"`
}

// Present reports whether the slot holds data
func (s Slot[T]) Present() bool {
	return s.Data != nil
}

// UserProfile is the consolidated applicant profile
type UserProfile struct {
	FullName      string                            `json:"full_name"`
	Passport      Slot[domain.PassportPayload]      `json:"passport"`
	Diploma       Slot[domain.DiplomaPayload]       `json:"diploma"`
	Qualification Slot[domain.QualificationPayload] `json:"qualification"`
}

// Empty returns the profile with every slot empty and the sentinel name
func Empty() UserProfile {
	return UserProfile{FullName: UnknownCandidate}
}

// HasName reports whether some document has contributed a name
func (p UserProfile) HasName() bool {
	return p.FullName != UnknownCandidate
}
