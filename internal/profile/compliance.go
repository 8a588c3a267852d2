package profile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// CheckStatus is the outcome of a single compliance check or of a whole report
type CheckStatus string

const (
	StatusSuccess CheckStatus = "success"
	StatusWarning CheckStatus = "warning"
	StatusError   CheckStatus = "error"
)

// Check identifiers
const (
	CheckPassport                = "passport"
	CheckSnils                   = "snils"
	CheckDiploma                 = "diploma"
	CheckNameMatch               = "name_match"
	CheckQualification           = "qualification"
	CheckQualificationExpiration = "qualification_expiration"
)

// ExpiryWarningWindow is how close to expiry a certificate triggers a warning
const ExpiryWarningWindow = 30 * 24 * time.Hour

// CheckResult is the outcome of one rule.
// MessageKey and Params allow the message to be localized at the edge.
type CheckResult struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Status     CheckStatus       `json:"status"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"`
	Params     map[string]string `json:"-"`
}

// ComplianceReport scores a profile against the registry checklist
type ComplianceReport struct {
	Score      int           `json:"score"`
	Status     CheckStatus   `json:"status"`
	Checks     []CheckResult `json:"checks"`
	Summary    string        `json:"summary"`
	SummaryKey string        `json:"-"`
}

// Rule is one weighted entry of the compliance battery.
// Applies gates evaluation; a rule that does not apply adds no check and no weight.
type Rule struct {
	ID      string
	Label   string
	Weight  int
	Applies func(p UserProfile) bool
	Check   func(p UserProfile, now time.Time) CheckResult
}

// Rules returns the compliance battery in evaluation order
func Rules() []Rule {
	return []Rule{
		{
			ID:      CheckPassport,
			Label:   "Passport",
			Weight:  2,
			Applies: always,
			Check: func(p UserProfile, _ time.Time) CheckResult {
				if p.Passport.Present() {
					return result(StatusSuccess, "passport data loaded", "compliance.passport.present")
				}
				return result(StatusError, "passport is missing", "compliance.passport.missing")
			},
		},
		{
			ID:      CheckSnils,
			Label:   "SNILS",
			Weight:  1,
			Applies: func(p UserProfile) bool { return p.Passport.Present() },
			Check: func(p UserProfile, _ time.Time) CheckResult {
				if s := p.Passport.Data.Snils; s != nil && strings.TrimSpace(*s) != "" {
					return result(StatusSuccess, "SNILS number found", "compliance.snils.present")
				}
				return result(StatusWarning, "SNILS number not found", "compliance.snils.missing")
			},
		},
		{
			ID:      CheckDiploma,
			Label:   "Education diploma",
			Weight:  2,
			Applies: always,
			Check: func(p UserProfile, _ time.Time) CheckResult {
				if p.Diploma.Present() {
					return result(StatusSuccess, "diploma data loaded", "compliance.diploma.present")
				}
				return result(StatusError, "diploma is missing", "compliance.diploma.missing")
			},
		},
		{
			ID:     CheckNameMatch,
			Label:  "Name consistency",
			Weight: 2,
			Applies: func(p UserProfile) bool {
				return p.Passport.Present() && p.Diploma.Present()
			},
			Check: checkNameMatch,
		},
		{
			ID:      CheckQualification,
			Label:   "Qualification certificate",
			Weight:  2,
			Applies: always,
			Check: func(p UserProfile, _ time.Time) CheckResult {
				if p.Qualification.Present() {
					return result(StatusSuccess, "qualification certificate loaded", "compliance.qualification.present")
				}
				return result(StatusError, "qualification certificate is missing", "compliance.qualification.missing")
			},
		},
		{
			ID:      CheckQualificationExpiration,
			Label:   "Certificate validity",
			Weight:  3,
			Applies: func(p UserProfile) bool { return p.Qualification.Present() },
			Check:   checkExpiration,
		},
	}
}

// EvaluateCompliance scores the profile as of the current time
func EvaluateCompliance(p UserProfile) ComplianceReport {
	return EvaluateComplianceAt(p, time.Now())
}

// EvaluateComplianceAt scores the profile as of now
func EvaluateComplianceAt(p UserProfile, now time.Time) ComplianceReport {
	return evaluate(Rules(), p, now)
}

func evaluate(rules []Rule, p UserProfile, now time.Time) ComplianceReport {
	checks := make([]CheckResult, 0, len(rules))
	totalWeight, passedWeight := 0, 0

	for _, rule := range rules {
		if !rule.Applies(p) {
			continue
		}
		res := rule.Check(p, now)
		res.ID = rule.ID
		res.Label = rule.Label
		checks = append(checks, res)

		totalWeight += rule.Weight
		if res.Status == StatusSuccess {
			passedWeight += rule.Weight
		}
	}

	score := 0
	if totalWeight > 0 {
		score = int(math.Round(100 * float64(passedWeight) / float64(totalWeight)))
	}

	status := overallStatus(checks, score)
	summary, summaryKey := summarize(score, status)

	return ComplianceReport{
		Score:      score,
		Status:     status,
		Checks:     checks,
		Summary:    summary,
		SummaryKey: summaryKey,
	}
}

func overallStatus(checks []CheckResult, score int) CheckStatus {
	hasWarning := false
	for _, c := range checks {
		switch c.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			hasWarning = true
		}
	}
	if hasWarning && score < 100 {
		return StatusWarning
	}
	return StatusSuccess
}

func summarize(score int, status CheckStatus) (string, string) {
	switch {
	case score == 0:
		return "upload documents to begin verification", "compliance.summary.empty"
	case status == StatusError:
		return "critical errors found, registry submission impossible", "compliance.summary.error"
	case status == StatusWarning:
		return "package needs attention but may be accepted", "compliance.summary.warning"
	default:
		return "package ready for submission", "compliance.summary.success"
	}
}

func checkNameMatch(p UserProfile, _ time.Time) CheckResult {
	passportName := normalizeName(p.Passport.Data.LastName)
	diplomaName := normalizeName(p.Diploma.Data.LastName)

	if passportName != "" && diplomaName != "" && passportName != diplomaName {
		return resultWith(StatusError,
			fmt.Sprintf("last name differs between passport (%s) and diploma (%s)", p.Passport.Data.LastName, p.Diploma.Data.LastName),
			"compliance.name_match.mismatch",
			map[string]string{"passport": p.Passport.Data.LastName, "diploma": p.Diploma.Data.LastName},
		)
	}
	return result(StatusSuccess, "names match across documents", "compliance.name_match.ok")
}

func checkExpiration(p UserProfile, now time.Time) CheckResult {
	raw := p.Qualification.Data.ExpirationDate
	expires, ok := ParseDate(raw)
	if !ok {
		return result(StatusWarning, "cannot determine expiration", "compliance.expiration.unknown")
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	params := map[string]string{"date": raw}

	switch {
	case expires.Before(today):
		return resultWith(StatusError, "certificate expired on "+raw, "compliance.expiration.expired", params)
	case expires.Sub(today) <= ExpiryWarningWindow:
		return resultWith(StatusWarning, "expires within a month", "compliance.expiration.soon", params)
	default:
		return resultWith(StatusSuccess, "certificate valid until "+raw, "compliance.expiration.valid", params)
	}
}

func normalizeName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func always(UserProfile) bool { return true }

func result(status CheckStatus, message, key string) CheckResult {
	return CheckResult{Status: status, Message: message, MessageKey: key}
}

func resultWith(status CheckStatus, message, key string, params map[string]string) CheckResult {
	return CheckResult{Status: status, Message: message, MessageKey: key, Params: params}
}
