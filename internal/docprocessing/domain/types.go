package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentType is the discriminant of a DocumentPayload
type DocumentType string

const (
	DocumentTypePassport      DocumentType = "passport"
	DocumentTypeDiploma       DocumentType = "diploma"
	DocumentTypeQualification DocumentType = "qualification"
	DocumentTypeSnils         DocumentType = "snils"
	DocumentTypeRaw           DocumentType = "raw"
)

// DocumentTypes lists every recognized document type
var DocumentTypes = []DocumentType{
	DocumentTypePassport,
	DocumentTypeDiploma,
	DocumentTypeQualification,
	DocumentTypeSnils,
	DocumentTypeRaw,
}

// Valid reports whether t is one of the known document types
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DocumentPayload is the structured data extracted from a single document.
// The set of implementations is closed: PassportPayload, DiplomaPayload,
// QualificationPayload, SnilsPayload and RawPayload.
//
// Payloads are passed by value. Pointers to the payload structs satisfy the
// interface through Go's method sets but are rejected by MarshalPayload and
// processor.ValidatePayload, and ignored by the profile merger.
type DocumentPayload interface {
	Type() DocumentType
	documentPayload()
}

// PassportPayload holds fields of a domestic passport scan
type PassportPayload struct {
	LastName           string  `json:"lastName" validate:"max=128"`
	FirstName          string  `json:"firstName" validate:"max=128"`
	MiddleName         string  `json:"middleName" validate:"max=128"`
	SeriesNumber       string  `json:"seriesNumber" validate:"max=32"`
	IssuedBy           string  `json:"issuedBy" validate:"max=512"`
	DateIssued         string  `json:"dateIssued" validate:"max=32"`
	DepartmentCode     string  `json:"departmentCode" validate:"max=16"`
	BirthDate          string  `json:"birthDate" validate:"max=32"`
	BirthPlace         string  `json:"birthPlace" validate:"max=512"`
	RegistrationCity   string  `json:"registrationCity" validate:"max=256"`
	RegistrationStreet string  `json:"registrationStreet" validate:"max=256"`
	RegistrationHouse  string  `json:"registrationHouse" validate:"max=32"`
	RegistrationFlat   string  `json:"registrationFlat" validate:"max=32"`
	RegistrationDate   string  `json:"registrationDate" validate:"max=32"`
	Snils              *string `json:"snils" validate:"omitempty,max=32"`
}

// DiplomaPayload holds fields of an education diploma
type DiplomaPayload struct {
	LastName      string  `json:"lastName" validate:"max=128"`
	FirstName     string  `json:"firstName" validate:"max=128"`
	MiddleName    string  `json:"middleName" validate:"max=128"`
	Series        *string `json:"series" validate:"omitempty,max=32"`
	Number        string  `json:"number" validate:"max=64"`
	RegNumber     string  `json:"regNumber" validate:"max=64"`
	Institution   string  `json:"institution" validate:"max=512"`
	City          string  `json:"city" validate:"max=256"`
	Specialty     string  `json:"specialty" validate:"max=512"`
	Qualification string  `json:"qualification" validate:"max=512"`
	DateIssued    string  `json:"dateIssued" validate:"max=32"`
}

// QualificationPayload holds fields of a professional-qualification certificate
type QualificationPayload struct {
	LastName                  string `json:"lastName" validate:"max=128"`
	FirstName                 string `json:"firstName" validate:"max=128"`
	MiddleName                string `json:"middleName" validate:"max=128"`
	RegistrationNumber        string `json:"registrationNumber" validate:"max=64"`
	IssueDate                 string `json:"issueDate" validate:"max=32"`
	ExpirationDate            string `json:"expirationDate" validate:"max=32"`
	AssessmentCenterName      string `json:"assessmentCenterName" validate:"max=512"`
	AssessmentCenterRegNumber string `json:"assessmentCenterRegNumber" validate:"max=64"`
}

// SnilsPayload holds fields of a standalone SNILS insurance card
type SnilsPayload struct {
	LastName   string `json:"lastName" validate:"max=128"`
	FirstName  string `json:"firstName" validate:"max=128"`
	MiddleName string `json:"middleName" validate:"max=128"`
	Snils      string `json:"snils" validate:"max=32"`
}

// RawPayload is a successful extraction that carries no structured fields
type RawPayload struct {
	RawText string `json:"rawText"`
}

func (PassportPayload) Type() DocumentType      { return DocumentTypePassport }
func (DiplomaPayload) Type() DocumentType       { return DocumentTypeDiploma }
func (QualificationPayload) Type() DocumentType { return DocumentTypeQualification }
func (SnilsPayload) Type() DocumentType         { return DocumentTypeSnils }
func (RawPayload) Type() DocumentType           { return DocumentTypeRaw }

func (PassportPayload) documentPayload()      {}
func (DiplomaPayload) documentPayload()       {}
func (QualificationPayload) documentPayload() {}
func (SnilsPayload) documentPayload()         {}
func (RawPayload) documentPayload()           {}

// MarshalPayload encodes a payload with its "type" discriminant
func MarshalPayload(p DocumentPayload) ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}

	var body any
	switch v := p.(type) {
	case PassportPayload:
		body = struct {
			Type DocumentType `json:"type"`
			PassportPayload
		}{v.Type(), v}
	case DiplomaPayload:
		body = struct {
			Type DocumentType `json:"type"`
			DiplomaPayload
		}{v.Type(), v}
	case QualificationPayload:
		body = struct {
			Type DocumentType `json:"type"`
			QualificationPayload
		}{v.Type(), v}
	case SnilsPayload:
		body = struct {
			Type DocumentType `json:"type"`
			SnilsPayload
		}{v.Type(), v}
	case RawPayload:
		body = struct {
			Type DocumentType `json:"type"`
			RawPayload
		}{v.Type(), v}
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
	return json.Marshal(body)
}

// UnmarshalPayload decodes a payload by dispatching on its "type" discriminant.
// Missing string fields decode to "" and missing optional fields to nil.
// A JSON null yields a nil payload.
func UnmarshalPayload(data []byte) (DocumentPayload, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var head struct {
		Type DocumentType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode payload type: %w", err)
	}

	switch head.Type {
	case DocumentTypePassport:
		var p PassportPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case DocumentTypeDiploma:
		var p DiplomaPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case DocumentTypeQualification:
		var p QualificationPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case DocumentTypeSnils:
		var p SnilsPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case DocumentTypeRaw:
		var p RawPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case "":
		return nil, fmt.Errorf("payload has no type discriminant")
	default:
		return nil, fmt.Errorf("unknown document type: %s", head.Type)
	}
}

// ExtractionResult is the outcome of analysing one uploaded file.
// When Error is set the result carries no usable data regardless of Data.
type ExtractionResult struct {
	FileID   string
	FileName string
	Data     DocumentPayload
	Error    string
}

// Usable reports whether the result contributes data to a profile
func (r ExtractionResult) Usable() bool {
	return r.Error == "" && r.Data != nil
}

// DocumentType returns the payload type, or "" when the result carries no data
func (r ExtractionResult) DocumentType() DocumentType {
	if r.Data == nil {
		return ""
	}
	return r.Data.Type()
}

type extractionResultJSON struct {
	FileID   string          `json:"fileId"`
	FileName string          `json:"fileName"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	data, err := MarshalPayload(r.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(extractionResultJSON{
		FileID:   r.FileID,
		FileName: r.FileName,
		Data:     data,
		Error:    r.Error,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (r *ExtractionResult) UnmarshalJSON(b []byte) error {
	var raw extractionResultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	payload, err := UnmarshalPayload(raw.Data)
	if err != nil {
		return fmt.Errorf("result %s: %w", raw.FileID, err)
	}
	*r = ExtractionResult{
		FileID:   raw.FileID,
		FileName: raw.FileName,
		Data:     payload,
		Error:    raw.Error,
	}
	return nil
}

// FileStatus represents the processing state of an uploaded file
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// UploadedFile is a source file registered in an applicant package
type UploadedFile struct {
	FileID     string       `json:"file_id"`
	FileName   string       `json:"file_name"`
	Size       int          `json:"size"`
	Hint       DocumentType `json:"hint,omitempty"`
	Status     FileStatus   `json:"status"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

// Package groups the files and extraction results of one applicant
type Package struct {
	ID        string             `json:"id"`
	Files     []UploadedFile     `json:"files"`
	Results   []ExtractionResult `json:"results"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ProcessingAuditEntry records a document processing event.
// It carries metadata only, never document contents.
type ProcessingAuditEntry struct {
	ID                   string    `json:"id"`
	PackageID            string    `json:"package_id"`
	FileID               string    `json:"file_id"`
	DocumentType         string    `json:"document_type"`
	Processor            string    `json:"processor"`
	RequestedBy          string    `json:"requested_by,omitempty"`
	Succeeded            bool      `json:"succeeded"`
	FieldsExtracted      []string  `json:"fields_extracted"`
	ProcessingDurationMs int64     `json:"processing_duration_ms"`
	ImageDeletedAt       time.Time `json:"image_deleted_at"`
	CreatedAt            time.Time `json:"created_at"`
}
