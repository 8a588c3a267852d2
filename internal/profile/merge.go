package profile

import (
	"strings"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
)

// MergeProfiles folds extraction results, in order, into a single profile.
//
// Later results override earlier ones field by field, but only with non-empty
// values. Failed results and raw payloads contribute nothing. A standalone
// SNILS document feeds the passport slot rather than a slot of its own.
func MergeProfiles(results []domain.ExtractionResult) UserProfile {
	acc := Empty()
	for _, r := range results {
		if !r.Usable() {
			continue
		}
		acc = mergeResult(acc, r)
	}
	return acc
}

func mergeResult(p UserProfile, r domain.ExtractionResult) UserProfile {
	switch data := r.Data.(type) {
	case domain.PassportPayload:
		p.Passport = mergePassport(p.Passport, data, r.FileID)
		p.FullName = passportName(p)

	case domain.DiplomaPayload:
		p.Diploma = mergeDiploma(p.Diploma, data, r.FileID)
		if !p.HasName() {
			p.FullName = fallbackName(p.FullName, data.LastName, data.FirstName, data.MiddleName)
		}

	case domain.QualificationPayload:
		p.Qualification = mergeQualification(p.Qualification, data, r.FileID)
		if !p.HasName() {
			p.FullName = fallbackName(p.FullName, data.LastName, data.FirstName, data.MiddleName)
		}

	case domain.SnilsPayload:
		p.Passport = injectSnils(p.Passport, data, r.FileID)
		p.FullName = passportName(p)

	case domain.RawPayload:
		// no structured data
	}
	return p
}

// passportName derives the full name from the passport slot. A passport name
// takes precedence over any name set earlier; without one the current name stays.
func passportName(p UserProfile) string {
	if p.Passport.Data == nil || p.Passport.Data.LastName == "" {
		return p.FullName
	}
	d := p.Passport.Data
	return joinName(d.LastName, d.FirstName, d.MiddleName)
}

func fallbackName(current, last, first, middle string) string {
	if last == "" {
		return current
	}
	return joinName(last, first, middle)
}

func joinName(last, first, middle string) string {
	return strings.TrimSpace(last + " " + first + " " + middle)
}

func mergePassport(slot Slot[domain.PassportPayload], in domain.PassportPayload, fileID string) Slot[domain.PassportPayload] {
	if slot.Data == nil {
		adopted := clonePassport(in)
		return Slot[domain.PassportPayload]{Data: &adopted, SourceFileID: fileID}
	}

	merged := clonePassport(*slot.Data)
	overlay(&merged.LastName, in.LastName)
	overlay(&merged.FirstName, in.FirstName)
	overlay(&merged.MiddleName, in.MiddleName)
	overlay(&merged.SeriesNumber, in.SeriesNumber)
	overlay(&merged.IssuedBy, in.IssuedBy)
	overlay(&merged.DateIssued, in.DateIssued)
	overlay(&merged.DepartmentCode, in.DepartmentCode)
	overlay(&merged.BirthDate, in.BirthDate)
	overlay(&merged.BirthPlace, in.BirthPlace)
	overlay(&merged.RegistrationCity, in.RegistrationCity)
	overlay(&merged.RegistrationStreet, in.RegistrationStreet)
	overlay(&merged.RegistrationHouse, in.RegistrationHouse)
	overlay(&merged.RegistrationFlat, in.RegistrationFlat)
	overlay(&merged.RegistrationDate, in.RegistrationDate)
	overlayOptional(&merged.Snils, in.Snils)

	return Slot[domain.PassportPayload]{Data: &merged, SourceFileID: fileID}
}

func mergeDiploma(slot Slot[domain.DiplomaPayload], in domain.DiplomaPayload, fileID string) Slot[domain.DiplomaPayload] {
	if slot.Data == nil {
		adopted := cloneDiploma(in)
		return Slot[domain.DiplomaPayload]{Data: &adopted, SourceFileID: fileID}
	}

	merged := cloneDiploma(*slot.Data)
	overlay(&merged.LastName, in.LastName)
	overlay(&merged.FirstName, in.FirstName)
	overlay(&merged.MiddleName, in.MiddleName)
	overlayOptional(&merged.Series, in.Series)
	overlay(&merged.Number, in.Number)
	overlay(&merged.RegNumber, in.RegNumber)
	overlay(&merged.Institution, in.Institution)
	overlay(&merged.City, in.City)
	overlay(&merged.Specialty, in.Specialty)
	overlay(&merged.Qualification, in.Qualification)
	overlay(&merged.DateIssued, in.DateIssued)

	return Slot[domain.DiplomaPayload]{Data: &merged, SourceFileID: fileID}
}

func mergeQualification(slot Slot[domain.QualificationPayload], in domain.QualificationPayload, fileID string) Slot[domain.QualificationPayload] {
	if slot.Data == nil {
		adopted := in
		return Slot[domain.QualificationPayload]{Data: &adopted, SourceFileID: fileID}
	}

	merged := *slot.Data
	overlay(&merged.LastName, in.LastName)
	overlay(&merged.FirstName, in.FirstName)
	overlay(&merged.MiddleName, in.MiddleName)
	overlay(&merged.RegistrationNumber, in.RegistrationNumber)
	overlay(&merged.IssueDate, in.IssueDate)
	overlay(&merged.ExpirationDate, in.ExpirationDate)
	overlay(&merged.AssessmentCenterName, in.AssessmentCenterName)
	overlay(&merged.AssessmentCenterRegNumber, in.AssessmentCenterRegNumber)

	return Slot[domain.QualificationPayload]{Data: &merged, SourceFileID: fileID}
}

// injectSnils applies a standalone SNILS document to the passport slot.
// With no passport yet it creates a placeholder carrying only identity and SNILS.
// Otherwise the SNILS number is overwritten unconditionally and the name is
// backfilled only when the passport has no last name.
func injectSnils(slot Slot[domain.PassportPayload], in domain.SnilsPayload, fileID string) Slot[domain.PassportPayload] {
	snils := in.Snils

	if slot.Data == nil {
		placeholder := domain.PassportPayload{
			LastName:   in.LastName,
			FirstName:  in.FirstName,
			MiddleName: in.MiddleName,
			Snils:      &snils,
		}
		return Slot[domain.PassportPayload]{Data: &placeholder, SourceFileID: fileID}
	}

	merged := clonePassport(*slot.Data)
	merged.Snils = &snils
	if merged.LastName == "" {
		merged.LastName = in.LastName
		merged.FirstName = in.FirstName
		merged.MiddleName = in.MiddleName
	}

	return Slot[domain.PassportPayload]{Data: &merged, SourceFileID: fileID}
}

func overlay(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func overlayOptional(dst **string, src *string) {
	if src != nil && *src != "" {
		v := *src
		*dst = &v
	}
}

func clonePassport(p domain.PassportPayload) domain.PassportPayload {
	p.Snils = cloneString(p.Snils)
	return p
}

func cloneDiploma(d domain.DiplomaPayload) domain.DiplomaPayload {
	d.Series = cloneString(d.Series)
	return d
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
