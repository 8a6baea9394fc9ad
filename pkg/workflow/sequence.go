// Package workflow defines the ordered stage sequences that security
// engagements progress through.
//
// A Sequence is configuration, not mutable state: it is fixed per engagement
// type at construction time and is the single source of ordering truth for
// stage transitions. Audits and penetration tests use separately configured
// sequences because product requirements may diverge.
package workflow

import (
	"fmt"

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

// Stage is a named phase in an engagement's lifecycle.
type Stage string

// Audit lifecycle stages.
const (
	StageScoping   Stage = "SCOPING"
	StageScanning  Stage = "SCANNING"
	StageTesting   Stage = "TESTING"
	StageReporting Stage = "REPORTING"
	StageDelivered Stage = "DELIVERED"
)

// Penetration test lifecycle stages. REPORTING and DELIVERED are shared
// with the audit lifecycle.
const (
	StagePlanning         Stage = "PLANNING"
	StageReconnaissance   Stage = "RECONNAISSANCE"
	StageExploitation     Stage = "EXPLOITATION"
	StagePostExploitation Stage = "POST_EXPLOITATION"
)

// Sequence is an immutable ordered list of unique stages.
type Sequence struct {
	name   string
	stages []Stage
	index  map[Stage]int
}

// New creates a Sequence from the given stages.
// The stages must be non-empty and unique.
func New(name string, stages ...Stage) (*Sequence, error) {
	const op = "workflow.New"
	if len(stages) == 0 {
		return nil, errors.E(errors.KindInvalidInput, op, "sequence must have at least one stage")
	}

	index := make(map[Stage]int, len(stages))
	for i, s := range stages {
		if s == "" {
			return nil, errors.E(errors.KindInvalidInput, op, "stage name must not be empty")
		}
		if _, dup := index[s]; dup {
			return nil, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("duplicate stage %q", s))
		}
		index[s] = i
	}

	seq := &Sequence{
		name:   name,
		stages: append([]Stage(nil), stages...),
		index:  index,
	}
	return seq, nil
}

// MustNew is like New but panics on error. Intended for the package-level
// product sequences, which are validated by construction.
func MustNew(name string, stages ...Stage) *Sequence {
	seq, err := New(name, stages...)
	if err != nil {
		panic(err)
	}
	return seq
}

// Audit returns the security audit lifecycle:
// SCOPING -> SCANNING -> TESTING -> REPORTING -> DELIVERED.
func Audit() *Sequence {
	return auditSequence
}

// Pentest returns the penetration test lifecycle:
// PLANNING -> RECONNAISSANCE -> EXPLOITATION -> POST_EXPLOITATION ->
// REPORTING -> DELIVERED.
func Pentest() *Sequence {
	return pentestSequence
}

var (
	auditSequence = MustNew("audit",
		StageScoping, StageScanning, StageTesting, StageReporting, StageDelivered)

	pentestSequence = MustNew("pentest",
		StagePlanning, StageReconnaissance, StageExploitation,
		StagePostExploitation, StageReporting, StageDelivered)
)

// Name returns the sequence name.
func (s *Sequence) Name() string {
	return s.name
}

// Stages returns a copy of the ordered stage list.
func (s *Sequence) Stages() []Stage {
	return append([]Stage(nil), s.stages...)
}

// Len returns the number of stages.
func (s *Sequence) Len() int {
	return len(s.stages)
}

// First returns the initial stage of the sequence.
func (s *Sequence) First() Stage {
	return s.stages[0]
}

// Last returns the terminal stage of the sequence.
func (s *Sequence) Last() Stage {
	return s.stages[len(s.stages)-1]
}

// Contains reports whether stage is a member of the sequence.
func (s *Sequence) Contains(stage Stage) bool {
	_, ok := s.index[stage]
	return ok
}

// IndexOf returns the position of stage in the sequence.
// Returns a KindInvalidStage error if the stage is not a member.
func (s *Sequence) IndexOf(stage Stage) (int, error) {
	i, ok := s.index[stage]
	if !ok {
		return 0, errors.E(errors.KindInvalidStage, "workflow.IndexOf",
			fmt.Sprintf("stage %q is not part of the %s sequence", stage, s.name))
	}
	return i, nil
}

// Next returns the stage immediately following stage, and whether one
// exists. The second return is false when stage is terminal.
// Returns a KindInvalidStage error if the stage is not a member.
func (s *Sequence) Next(stage Stage) (Stage, bool, error) {
	i, err := s.IndexOf(stage)
	if err != nil {
		return "", false, err
	}
	if i == len(s.stages)-1 {
		return "", false, nil
	}
	return s.stages[i+1], true, nil
}

// CanAdvance reports whether stage has a successor in the sequence.
// Returns a KindInvalidStage error if the stage is not a member.
func (s *Sequence) CanAdvance(stage Stage) (bool, error) {
	_, ok, err := s.Next(stage)
	return ok, err
}

// IsTerminal reports whether stage is the last stage of the sequence.
// Returns a KindInvalidStage error if the stage is not a member.
func (s *Sequence) IsTerminal(stage Stage) (bool, error) {
	i, err := s.IndexOf(stage)
	if err != nil {
		return false, err
	}
	return i == len(s.stages)-1, nil
}
