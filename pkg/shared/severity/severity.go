// Package severity provides unified severity and risk level definitions for
// the SOC workflow core.
//
// Two scales coexist in the product and are kept distinct on purpose:
//   - Level: incident severity (lowercase, four values) driving SLA windows.
//   - Risk: engagement finding risk (uppercase, five values) matching the
//     CVSS-derived rating attached to audit and pentest findings.
package severity

import "strings"

// Level represents an incident severity level.
type Level string

const (
	// Critical - immediate response required, shortest SLA window.
	Critical Level = "critical"

	// High - serious incident, urgent response.
	High Level = "high"

	// Medium - moderate incident, respond within the working day.
	Medium Level = "medium"

	// Low - minor incident, longest SLA window.
	Low Level = "low"
)

// AllLevels returns all incident severity levels in order of priority
// (highest first).
func AllLevels() []Level {
	return []Level{Critical, High, Medium, Low}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	return string(l)
}

// Valid reports whether the level is one of the recognized values.
func (l Level) Valid() bool {
	switch l {
	case Critical, High, Medium, Low:
		return true
	}
	return false
}

// Priority returns the numeric priority of the severity level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// LevelFromString normalizes a severity string to a Level.
// Unrecognized values return Low, mirroring the collaborator API's
// default SLA bucket.
func LevelFromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit":
		return Critical
	case "high":
		return High
	case "medium", "moderate", "med":
		return Medium
	default:
		return Low
	}
}

// LevelFromScore converts a numeric threat score (0-10, as emitted by the
// correlation engine) to an incident severity level.
//   - >= 9: critical
//   - >= 7: high
//   - >= 4: medium
//   - else: low
func LevelFromScore(score int) Level {
	switch {
	case score >= 9:
		return Critical
	case score >= 7:
		return High
	case score >= 4:
		return Medium
	default:
		return Low
	}
}

// Risk represents the risk level of an engagement finding.
type Risk string

const (
	RiskCritical Risk = "CRITICAL"
	RiskHigh     Risk = "HIGH"
	RiskMedium   Risk = "MEDIUM"
	RiskLow      Risk = "LOW"
	RiskInfo     Risk = "INFO"
)

// AllRisks returns all finding risk levels in order of priority
// (highest first).
func AllRisks() []Risk {
	return []Risk{RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskInfo}
}

// String returns the string representation of the risk level.
func (r Risk) String() string {
	return string(r)
}

// Valid reports whether the risk level is one of the recognized values.
func (r Risk) Valid() bool {
	switch r {
	case RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskInfo:
		return true
	}
	return false
}

// Priority returns the numeric priority of the risk level.
// Higher numbers = higher priority.
func (r Risk) Priority() int {
	switch r {
	case RiskCritical:
		return 5
	case RiskHigh:
		return 4
	case RiskMedium:
		return 3
	case RiskLow:
		return 2
	case RiskInfo:
		return 1
	default:
		return 0
	}
}

// RiskFromCVSS converts a CVSS score (0.0-10.0) to a risk level.
// Based on CVSS v3.0 severity ratings:
//   - 9.0-10.0: Critical
//   - 7.0-8.9: High
//   - 4.0-6.9: Medium
//   - 0.1-3.9: Low
//   - 0.0: Info
func RiskFromCVSS(score float64) Risk {
	switch {
	case score >= 9.0:
		return RiskCritical
	case score >= 7.0:
		return RiskHigh
	case score >= 4.0:
		return RiskMedium
	case score > 0:
		return RiskLow
	default:
		return RiskInfo
	}
}

// CountByRisk counts findings by risk level.
type CountByRisk struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Increment increases the count for the given risk level.
func (c *CountByRisk) Increment(r Risk) {
	c.Total++
	switch r {
	case RiskCritical:
		c.Critical++
	case RiskHigh:
		c.High++
	case RiskMedium:
		c.Medium++
	case RiskLow:
		c.Low++
	case RiskInfo:
		c.Info++
	}
}

// HighestRisk returns the highest risk level that has a non-zero count.
func (c *CountByRisk) HighestRisk() Risk {
	if c.Critical > 0 {
		return RiskCritical
	}
	if c.High > 0 {
		return RiskHigh
	}
	if c.Medium > 0 {
		return RiskMedium
	}
	if c.Low > 0 {
		return RiskLow
	}
	return RiskInfo
}
