package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalPayload_DispatchesOnType(t *testing.T) {
	tests := []struct {
		name string
		json string
		want domain.DocumentPayload
	}{
		{
			name: "passport with missing fields",
			json: `{"type":"passport","lastName":"Иванов","seriesNumber":"4510 123456"}`,
			want: domain.PassportPayload{LastName: "Иванов", SeriesNumber: "4510 123456"},
		},
		{
			name: "diploma with null series",
			json: `{"type":"diploma","lastName":"Иванов","series":null,"institution":"МГСУ"}`,
			want: domain.DiplomaPayload{LastName: "Иванов", Institution: "МГСУ"},
		},
		{
			name: "qualification",
			json: `{"type":"qualification","expirationDate":"01.01.2030"}`,
			want: domain.QualificationPayload{ExpirationDate: "01.01.2030"},
		},
		{
			name: "snils",
			json: `{"type":"snils","lastName":"Иванов","snils":"112-233-445 95"}`,
			want: domain.SnilsPayload{LastName: "Иванов", Snils: "112-233-445 95"},
		},
		{
			name: "raw",
			json: `{"type":"raw","rawText":"???"}`,
			want: domain.RawPayload{RawText: "???"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.UnmarshalPayload([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalPayload_Errors(t *testing.T) {
	_, err := domain.UnmarshalPayload([]byte(`{"lastName":"Иванов"}`))
	assert.Error(t, err)

	_, err = domain.UnmarshalPayload([]byte(`{"type":"driver_license"}`))
	assert.Error(t, err)

	p, err := domain.UnmarshalPayload([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMarshalPayload_IncludesDiscriminant(t *testing.T) {
	snils := "112-233-445 95"
	data, err := domain.MarshalPayload(domain.PassportPayload{LastName: "Иванов", Snils: &snils})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "passport", m["type"])
	assert.Equal(t, "Иванов", m["lastName"])
	assert.Equal(t, "112-233-445 95", m["snils"])
	assert.Equal(t, "", m["issuedBy"])
}

func TestMarshalPayload_RejectsPointer(t *testing.T) {
	_, err := domain.MarshalPayload(&domain.SnilsPayload{Snils: "112-233-445 95"})
	assert.Error(t, err)
}

func TestExtractionResult_JSON(t *testing.T) {
	input := `[
		{"fileId":"f1","fileName":"passport.jpg","data":{"type":"passport","lastName":"Иванов"}},
		{"fileId":"f2","fileName":"blurry.jpg","data":null,"error":"vision service returned 502"}
	]`

	var results []domain.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(input), &results))
	require.Len(t, results, 2)

	assert.True(t, results[0].Usable())
	assert.Equal(t, domain.DocumentTypePassport, results[0].DocumentType())
	assert.Equal(t, domain.PassportPayload{LastName: "Иванов"}, results[0].Data)

	assert.False(t, results[1].Usable())
	assert.Nil(t, results[1].Data)
	assert.Equal(t, "vision service returned 502", results[1].Error)

	encoded, err := json.Marshal(results[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"fileId":"f2","fileName":"blurry.jpg","data":null,"error":"vision service returned 502"}`, string(encoded))
}

func TestExtractionResult_ErrorDominatesData(t *testing.T) {
	r := domain.ExtractionResult{FileID: "f1", Data: domain.SnilsPayload{Snils: "1"}, Error: "failed"}
	assert.False(t, r.Usable())
}

func TestDocumentType_Valid(t *testing.T) {
	assert.True(t, domain.DocumentTypeSnils.Valid())
	assert.False(t, domain.DocumentType("lebenslauf").Valid())
}

func TestCheckSnils(t *testing.T) {
	tests := []struct {
		input     string
		valid     bool
		formatted string
	}{
		{"112-233-445 95", true, "112-233-445 95"},
		{"11223344595", true, "112-233-445 95"},
		{"123-456-789 64", true, "123-456-789 64"},
		{"112-233-445 96", false, ""},
		{"001-001-998 00", true, "001-001-998 00"},
		{"112-233-445", false, ""},
		{"112-233-445 9A", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := domain.CheckSnils(tt.input)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.formatted, res.Formatted)
			if !tt.valid {
				assert.NotEmpty(t, res.Message)
			}
		})
	}
}
