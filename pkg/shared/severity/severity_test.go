// Package severity provides unified severity and risk level definitions.
package severity

import (
	"testing"
)

func TestLevel_Priority(t *testing.T) {
	tests := []struct {
		level    Level
		expected int
	}{
		{Critical, 4},
		{High, 3},
		{Medium, 2},
		{Low, 1},
		{Level("invalid"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.Priority(); got != tt.expected {
				t.Errorf("Level.Priority() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLevel_Valid(t *testing.T) {
	for _, l := range AllLevels() {
		if !l.Valid() {
			t.Errorf("Level %q should be valid", l)
		}
	}
	if Level("CRITICAL").Valid() {
		t.Error("incident severity is lowercase; uppercase should be invalid")
	}
	if Level("").Valid() {
		t.Error("empty level should be invalid")
	}
}

func TestLevel_IsHigherThan(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Level
		expected bool
	}{
		{"Critical > High", Critical, High, true},
		{"High > Medium", High, Medium, true},
		{"Medium > Low", Medium, Low, true},
		{"Same severity", High, High, false},
		{"Low not > High", Low, High, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsHigherThan(tt.b); got != tt.expected {
				t.Errorf("IsHigherThan() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"critical", Critical},
		{"CRITICAL", Critical},
		{" crit ", Critical},
		{"high", High},
		{"medium", Medium},
		{"moderate", Medium},
		{"low", Low},
		{"unknown-value", Low},
		{"", Low},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromScore(t *testing.T) {
	tests := []struct {
		score    int
		expected Level
	}{
		{10, Critical},
		{9, Critical},
		{8, High},
		{7, High},
		{6, Medium},
		{4, Medium},
		{3, Low},
		{0, Low},
	}

	for _, tt := range tests {
		if got := LevelFromScore(tt.score); got != tt.expected {
			t.Errorf("LevelFromScore(%d) = %v, want %v", tt.score, got, tt.expected)
		}
	}
}

func TestRisk_Valid(t *testing.T) {
	for _, r := range AllRisks() {
		if !r.Valid() {
			t.Errorf("Risk %q should be valid", r)
		}
	}
	invalid := []Risk{"critical", "SEVERE", ""}
	for _, r := range invalid {
		if r.Valid() {
			t.Errorf("Risk %q should be invalid", r)
		}
	}
}

func TestRisk_Priority(t *testing.T) {
	prev := 6
	for _, r := range AllRisks() {
		p := r.Priority()
		if p >= prev {
			t.Errorf("Risk priorities should strictly decrease, got %d after %d", p, prev)
		}
		prev = p
	}
	if Risk("bogus").Priority() != 0 {
		t.Error("unrecognized risk should have priority 0")
	}
}

func TestRiskFromCVSS(t *testing.T) {
	tests := []struct {
		score    float64
		expected Risk
	}{
		{10.0, RiskCritical},
		{9.8, RiskCritical},
		{9.0, RiskCritical},
		{8.9, RiskHigh},
		{7.0, RiskHigh},
		{6.9, RiskMedium},
		{4.0, RiskMedium},
		{3.9, RiskLow},
		{0.1, RiskLow},
		{0.0, RiskInfo},
	}

	for _, tt := range tests {
		if got := RiskFromCVSS(tt.score); got != tt.expected {
			t.Errorf("RiskFromCVSS(%.1f) = %v, want %v", tt.score, got, tt.expected)
		}
	}
}

func TestCountByRisk(t *testing.T) {
	var c CountByRisk
	c.Increment(RiskCritical)
	c.Increment(RiskHigh)
	c.Increment(RiskHigh)
	c.Increment(RiskInfo)

	if c.Total != 4 {
		t.Errorf("Total = %d, want 4", c.Total)
	}
	if c.Critical != 1 || c.High != 2 || c.Info != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if got := c.HighestRisk(); got != RiskCritical {
		t.Errorf("HighestRisk() = %v, want RiskCritical", got)
	}

	var empty CountByRisk
	if got := empty.HighestRisk(); got != RiskInfo {
		t.Errorf("HighestRisk() on empty = %v, want RiskInfo", got)
	}
}
