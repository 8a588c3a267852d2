package profile

import "github.com/regdocs/regdocs-backend/internal/docprocessing/domain"

// Template field prefixes, one per profile slot
const (
	prefixPassport      = "passport_"
	prefixDiploma       = "diploma_"
	prefixQualification = "qualification_"
)

// FullNameField is the computed template key holding the applicant's full name
const FullNameField = "full_name"

// TemplateFields flattens a profile into the key/value dictionary consumed by
// the document generator. Absent slots contribute their keys with empty values
// so every placeholder is always substituted.
func TemplateFields(p UserProfile) map[string]string {
	fields := map[string]string{FullNameField: p.FullName}

	var passport domain.PassportPayload
	if p.Passport.Data != nil {
		passport = *p.Passport.Data
	}
	put(fields, prefixPassport, passportFields(passport))

	var diploma domain.DiplomaPayload
	if p.Diploma.Data != nil {
		diploma = *p.Diploma.Data
	}
	put(fields, prefixDiploma, diplomaFields(diploma))

	var qualification domain.QualificationPayload
	if p.Qualification.Data != nil {
		qualification = *p.Qualification.Data
	}
	put(fields, prefixQualification, qualificationFields(qualification))

	return fields
}

func put(dst map[string]string, prefix string, src map[string]string) {
	for k, v := range src {
		dst[prefix+k] = v
	}
}

func passportFields(d domain.PassportPayload) map[string]string {
	return map[string]string{
		"last_name":           d.LastName,
		"first_name":          d.FirstName,
		"middle_name":         d.MiddleName,
		"series_number":       d.SeriesNumber,
		"issued_by":           d.IssuedBy,
		"date_issued":         d.DateIssued,
		"department_code":     d.DepartmentCode,
		"birth_date":          d.BirthDate,
		"birth_place":         d.BirthPlace,
		"registration_city":   d.RegistrationCity,
		"registration_street": d.RegistrationStreet,
		"registration_house":  d.RegistrationHouse,
		"registration_flat":   d.RegistrationFlat,
		"registration_date":   d.RegistrationDate,
		"snils":               deref(d.Snils),
	}
}

func diplomaFields(d domain.DiplomaPayload) map[string]string {
	return map[string]string{
		"last_name":     d.LastName,
		"first_name":    d.FirstName,
		"middle_name":   d.MiddleName,
		"series":        deref(d.Series),
		"number":        d.Number,
		"reg_number":    d.RegNumber,
		"institution":   d.Institution,
		"city":          d.City,
		"specialty":     d.Specialty,
		"qualification": d.Qualification,
		"date_issued":   d.DateIssued,
	}
}

func qualificationFields(d domain.QualificationPayload) map[string]string {
	return map[string]string{
		"last_name":                    d.LastName,
		"first_name":                   d.FirstName,
		"middle_name":                  d.MiddleName,
		"registration_number":          d.RegistrationNumber,
		"issue_date":                   d.IssueDate,
		"expiration_date":              d.ExpirationDate,
		"assessment_center_name":       d.AssessmentCenterName,
		"assessment_center_reg_number": d.AssessmentCenterRegNumber,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
