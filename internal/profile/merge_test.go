package profile_test

import (
	"testing"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func ivanovPassport() domain.PassportPayload {
	return domain.PassportPayload{
		LastName:           "Иванов",
		FirstName:          "Иван",
		MiddleName:         "Петрович",
		SeriesNumber:       "4510 123456",
		IssuedBy:           "ОВД Тверского района г. Москвы",
		DateIssued:         "15.03.2012",
		DepartmentCode:     "770-001",
		BirthDate:          "01.02.1985",
		BirthPlace:         "г. Москва",
		RegistrationCity:   "Москва",
		RegistrationStreet: "ул. Ленина",
		RegistrationHouse:  "10",
		RegistrationFlat:   "5",
		RegistrationDate:   "20.04.2012",
	}
}

func passportResult(id string, p domain.PassportPayload) domain.ExtractionResult {
	return domain.ExtractionResult{FileID: id, FileName: id + ".jpg", Data: p}
}

func snilsResult(id, last, first, middle, number string) domain.ExtractionResult {
	return domain.ExtractionResult{
		FileID:   id,
		FileName: id + ".jpg",
		Data: domain.SnilsPayload{
			LastName:   last,
			FirstName:  first,
			MiddleName: middle,
			Snils:      number,
		},
	}
}

func diplomaResult(id, last, first, middle string) domain.ExtractionResult {
	return domain.ExtractionResult{
		FileID:   id,
		FileName: id + ".pdf",
		Data: domain.DiplomaPayload{
			LastName:      last,
			FirstName:     first,
			MiddleName:    middle,
			Series:        strPtr("107704"),
			Number:        "0012345",
			RegNumber:     "1234",
			Institution:   "МГСУ",
			City:          "Москва",
			Specialty:     "Промышленное и гражданское строительство",
			Qualification: "Инженер",
			DateIssued:    "30.06.2007",
		},
	}
}

func qualificationResult(id, last, expires string) domain.ExtractionResult {
	return domain.ExtractionResult{
		FileID:   id,
		FileName: id + ".pdf",
		Data: domain.QualificationPayload{
			LastName:                  last,
			FirstName:                 "Иван",
			MiddleName:                "Петрович",
			RegistrationNumber:        "77.01234.05",
			IssueDate:                 "10.10.2023",
			ExpirationDate:            expires,
			AssessmentCenterName:      "ЦОК Строитель",
			AssessmentCenterRegNumber: "77.001",
		},
	}
}

func TestMergeProfiles_Empty(t *testing.T) {
	got := profile.MergeProfiles(nil)

	assert.Equal(t, profile.Empty(), got)
	assert.Equal(t, profile.UnknownCandidate, got.FullName)
	assert.False(t, got.Passport.Present())
	assert.False(t, got.Diploma.Present())
	assert.False(t, got.Qualification.Present())
	assert.Empty(t, got.Passport.SourceFileID)
}

func TestMergeProfiles_ErrorsAreInert(t *testing.T) {
	results := []domain.ExtractionResult{
		{FileID: "f1", FileName: "a.jpg", Error: "vision service returned 502"},
		{FileID: "f2", FileName: "b.jpg", Data: ivanovPassport(), Error: "timeout"},
		{FileID: "f3", FileName: "c.jpg", Data: domain.SnilsPayload{LastName: "Петров", Snils: "112-233-445 95"}, Error: "rate limited"},
	}

	assert.Equal(t, profile.Empty(), profile.MergeProfiles(results))
}

func TestMergeProfiles_RawIsInert(t *testing.T) {
	results := []domain.ExtractionResult{
		{FileID: "f1", FileName: "scan.jpg", Data: domain.RawPayload{RawText: "неразборчиво"}},
	}

	assert.Equal(t, profile.Empty(), profile.MergeProfiles(results))
}

func TestMergeProfiles_PointerPayloadIsInert(t *testing.T) {
	passport := ivanovPassport()
	results := []domain.ExtractionResult{
		{FileID: "f1", FileName: "passport.jpg", Data: &passport},
	}

	assert.Equal(t, profile.Empty(), profile.MergeProfiles(results))
}

func TestMergeProfiles_PassportAdopted(t *testing.T) {
	got := profile.MergeProfiles([]domain.ExtractionResult{passportResult("f1", ivanovPassport())})

	require.True(t, got.Passport.Present())
	assert.Equal(t, ivanovPassport(), *got.Passport.Data)
	assert.Equal(t, "f1", got.Passport.SourceFileID)
	assert.Equal(t, "Иванов Иван Петрович", got.FullName)
}

func TestMergeProfiles_DuplicatePassportIsIdempotent(t *testing.T) {
	once := profile.MergeProfiles([]domain.ExtractionResult{passportResult("f1", ivanovPassport())})
	twice := profile.MergeProfiles([]domain.ExtractionResult{
		passportResult("f1", ivanovPassport()),
		passportResult("f2", ivanovPassport()),
	})

	assert.Equal(t, *once.Passport.Data, *twice.Passport.Data)
	assert.Equal(t, once.FullName, twice.FullName)
	assert.Equal(t, "f2", twice.Passport.SourceFileID)
}

func TestMergeProfiles_NonEmptyFieldPrecedence(t *testing.T) {
	first := ivanovPassport()
	first.Snils = strPtr("112-233-445 95")

	second := domain.PassportPayload{
		SeriesNumber:     "4515 654321",
		RegistrationCity: "Санкт-Петербург",
		Snils:            nil,
	}

	got := profile.MergeProfiles([]domain.ExtractionResult{
		passportResult("f1", first),
		passportResult("f2", second),
	})

	require.True(t, got.Passport.Present())
	p := got.Passport.Data
	assert.Equal(t, "Иванов", p.LastName)
	assert.Equal(t, "ОВД Тверского района г. Москвы", p.IssuedBy)
	assert.Equal(t, "4515 654321", p.SeriesNumber)
	assert.Equal(t, "Санкт-Петербург", p.RegistrationCity)
	require.NotNil(t, p.Snils)
	assert.Equal(t, "112-233-445 95", *p.Snils)
	assert.Equal(t, "f2", got.Passport.SourceFileID)
}

func TestMergeProfiles_ConflictingPassportsLastWins(t *testing.T) {
	second := ivanovPassport()
	second.LastName = "Сидоров"

	got := profile.MergeProfiles([]domain.ExtractionResult{
		passportResult("f1", ivanovPassport()),
		passportResult("f2", second),
	})

	assert.Equal(t, "Сидоров", got.Passport.Data.LastName)
	assert.Equal(t, "Сидоров Иван Петрович", got.FullName)
}

func TestMergeProfiles_SnilsWithoutPassport(t *testing.T) {
	got := profile.MergeProfiles([]domain.ExtractionResult{
		snilsResult("s1", "Иванов", "Иван", "Петрович", "112-233-445 95"),
	})

	require.True(t, got.Passport.Present())
	p := got.Passport.Data
	require.NotNil(t, p.Snils)
	assert.Equal(t, "112-233-445 95", *p.Snils)
	assert.Equal(t, "Иванов", p.LastName)
	assert.Equal(t, "Иван", p.FirstName)
	assert.Equal(t, "Петрович", p.MiddleName)

	expected := domain.PassportPayload{
		LastName:   "Иванов",
		FirstName:  "Иван",
		MiddleName: "Петрович",
		Snils:      strPtr("112-233-445 95"),
	}
	assert.Equal(t, expected, *p)
	assert.Equal(t, "s1", got.Passport.SourceFileID)
	assert.Equal(t, "Иванов Иван Петрович", got.FullName)
}

func TestMergeProfiles_SnilsAfterPassport(t *testing.T) {
	got := profile.MergeProfiles([]domain.ExtractionResult{
		passportResult("p1", ivanovPassport()),
		snilsResult("s1", "Иванов", "Иван", "Петрович", "112-233-445 95"),
	})

	expected := ivanovPassport()
	expected.Snils = strPtr("112-233-445 95")

	require.True(t, got.Passport.Present())
	assert.Equal(t, expected, *got.Passport.Data)
	assert.Equal(t, "s1", got.Passport.SourceFileID)
}

func TestMergeProfiles_SnilsOverwritesEmbeddedSnils(t *testing.T) {
	passport := ivanovPassport()
	passport.Snils = strPtr("000-000-000 00")

	got := profile.MergeProfiles([]domain.ExtractionResult{
		passportResult("p1", passport),
		snilsResult("s1", "Петров", "Пётр", "", "123-456-789 64"),
	})

	assert.Equal(t, "123-456-789 64", *got.Passport.Data.Snils)
	assert.Equal(t, "Иванов", got.Passport.Data.LastName, "name is not backfilled over an existing last name")
}

func TestMergeProfiles_SnilsBackfillsMissingName(t *testing.T) {
	partial := domain.PassportPayload{SeriesNumber: "4510 123456"}

	got := profile.MergeProfiles([]domain.ExtractionResult{
		passportResult("p1", partial),
		snilsResult("s1", "Иванов", "Иван", "Петрович", "112-233-445 95"),
	})

	p := got.Passport.Data
	assert.Equal(t, "4510 123456", p.SeriesNumber)
	assert.Equal(t, "Иванов", p.LastName)
	assert.Equal(t, "Иван", p.FirstName)
	assert.Equal(t, "Иванов Иван Петрович", got.FullName)
}

func TestMergeProfiles_TwoDifferentSnilsLastWins(t *testing.T) {
	got := profile.MergeProfiles([]domain.ExtractionResult{
		snilsResult("s1", "Иванов", "Иван", "Петрович", "112-233-445 95"),
		snilsResult("s2", "Иванов", "Иван", "Петрович", "123-456-789 64"),
	})

	assert.Equal(t, "123-456-789 64", *got.Passport.Data.Snils)
	assert.Equal(t, "s2", got.Passport.SourceFileID)
}

func TestMergeProfiles_NamePrecedence(t *testing.T) {
	t.Run("diploma name is a fallback", func(t *testing.T) {
		got := profile.MergeProfiles([]domain.ExtractionResult{
			diplomaResult("d1", "Петров", "Пётр", "Сергеевич"),
		})
		assert.Equal(t, "Петров Пётр Сергеевич", got.FullName)
	})

	t.Run("passport overrides diploma name", func(t *testing.T) {
		got := profile.MergeProfiles([]domain.ExtractionResult{
			diplomaResult("d1", "Петрова", "Анна", "Сергеевна"),
			passportResult("p1", ivanovPassport()),
		})
		assert.Equal(t, "Иванов Иван Петрович", got.FullName)
	})

	t.Run("snils overrides diploma name", func(t *testing.T) {
		got := profile.MergeProfiles([]domain.ExtractionResult{
			diplomaResult("d1", "Петрова", "Анна", "Сергеевна"),
			snilsResult("s1", "Иванова", "Анна", "Сергеевна", "112-233-445 95"),
		})
		assert.Equal(t, "Иванова Анна Сергеевна", got.FullName)
	})

	t.Run("diploma never overrides passport name", func(t *testing.T) {
		got := profile.MergeProfiles([]domain.ExtractionResult{
			passportResult("p1", ivanovPassport()),
			diplomaResult("d1", "Петров", "Пётр", "Сергеевич"),
		})
		assert.Equal(t, "Иванов Иван Петрович", got.FullName)
	})

	t.Run("qualification never overrides diploma name", func(t *testing.T) {
		got := profile.MergeProfiles([]domain.ExtractionResult{
			diplomaResult("d1", "Петров", "Пётр", "Сергеевич"),
			qualificationResult("q1", "Сидоров", "01.01.2030"),
		})
		assert.Equal(t, "Петров Пётр Сергеевич", got.FullName)
	})

	t.Run("missing middle name is trimmed", func(t *testing.T) {
		passport := ivanovPassport()
		passport.MiddleName = ""
		got := profile.MergeProfiles([]domain.ExtractionResult{passportResult("p1", passport)})
		assert.Equal(t, "Иванов Иван", got.FullName)
	})
}

func TestMergeProfiles_DiplomaAndQualificationSmartMerge(t *testing.T) {
	corrected := diplomaResult("d2", "", "", "")
	d := corrected.Data.(domain.DiplomaPayload)
	d.Institution = "НИУ МГСУ"
	d.Series = nil
	corrected.Data = d

	q2 := domain.ExtractionResult{
		FileID: "q2",
		Data:   domain.QualificationPayload{ExpirationDate: "01.01.2031"},
	}

	got := profile.MergeProfiles([]domain.ExtractionResult{
		diplomaResult("d1", "Иванов", "Иван", "Петрович"),
		corrected,
		qualificationResult("q1", "Иванов", "01.01.2030"),
		q2,
	})

	require.True(t, got.Diploma.Present())
	assert.Equal(t, "Иванов", got.Diploma.Data.LastName)
	assert.Equal(t, "НИУ МГСУ", got.Diploma.Data.Institution)
	require.NotNil(t, got.Diploma.Data.Series)
	assert.Equal(t, "107704", *got.Diploma.Data.Series)
	assert.Equal(t, "d2", got.Diploma.SourceFileID)

	require.True(t, got.Qualification.Present())
	assert.Equal(t, "01.01.2031", got.Qualification.Data.ExpirationDate)
	assert.Equal(t, "77.01234.05", got.Qualification.Data.RegistrationNumber)
	assert.Equal(t, "q2", got.Qualification.SourceFileID)
}

func TestMergeProfiles_DoesNotMutateInput(t *testing.T) {
	first := ivanovPassport()
	first.Snils = strPtr("112-233-445 95")
	results := []domain.ExtractionResult{
		passportResult("p1", first),
		snilsResult("s1", "Иванов", "Иван", "Петрович", "123-456-789 64"),
	}

	got := profile.MergeProfiles(results)
	*got.Passport.Data.Snils = "changed"

	original := results[0].Data.(domain.PassportPayload)
	assert.Equal(t, "112-233-445 95", *original.Snils)
}

func TestMergeProfiles_RemovedResultDropsSlot(t *testing.T) {
	results := []domain.ExtractionResult{
		passportResult("p1", ivanovPassport()),
		diplomaResult("d1", "Иванов", "Иван", "Петрович"),
	}
	before := profile.MergeProfiles(results)
	require.True(t, before.Diploma.Present())

	after := profile.MergeProfiles(results[:1])
	assert.False(t, after.Diploma.Present())
	assert.Empty(t, after.Diploma.SourceFileID)
	assert.Equal(t, "p1", after.Passport.SourceFileID)
}
