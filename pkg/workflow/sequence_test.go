package workflow

import (
	"testing"

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr bool
	}{
		{"empty", nil, true},
		{"blank stage", []Stage{StageScoping, ""}, true},
		{"duplicate stage", []Stage{StageScoping, StageScanning, StageScoping}, true},
		{"single stage", []Stage{StageDelivered}, false},
		{"valid", []Stage{StageScoping, StageScanning}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("test", tt.stages...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsValidation(err) {
				t.Errorf("New() error kind = %v, want invalid_input", errors.GetKind(err))
			}
		})
	}
}

func TestAudit_Ordering(t *testing.T) {
	seq := Audit()

	want := []Stage{StageScoping, StageScanning, StageTesting, StageReporting, StageDelivered}
	got := seq.Stages()
	if len(got) != len(want) {
		t.Fatalf("audit sequence has %d stages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage %d = %v, want %v", i, got[i], want[i])
		}
	}

	if seq.First() != StageScoping {
		t.Errorf("First() = %v, want SCOPING", seq.First())
	}
	if seq.Last() != StageDelivered {
		t.Errorf("Last() = %v, want DELIVERED", seq.Last())
	}
}

func TestPentest_Ordering(t *testing.T) {
	seq := Pentest()

	if seq.Len() != 6 {
		t.Fatalf("pentest sequence has %d stages, want 6", seq.Len())
	}
	if seq.First() != StagePlanning {
		t.Errorf("First() = %v, want PLANNING", seq.First())
	}
	if seq.Last() != StageDelivered {
		t.Errorf("Last() = %v, want DELIVERED", seq.Last())
	}
}

func TestSequence_IndexOf(t *testing.T) {
	seq := Audit()

	for i, stage := range seq.Stages() {
		got, err := seq.IndexOf(stage)
		if err != nil {
			t.Fatalf("IndexOf(%v) error = %v", stage, err)
		}
		if got != i {
			t.Errorf("IndexOf(%v) = %d, want %d", stage, got, i)
		}
	}

	_, err := seq.IndexOf(StagePlanning)
	if !errors.IsInvalidStage(err) {
		t.Errorf("IndexOf(PLANNING) on audit sequence: error kind = %v, want invalid_stage", errors.GetKind(err))
	}
}

func TestSequence_Next(t *testing.T) {
	seq := Audit()

	tests := []struct {
		stage    Stage
		wantNext Stage
		wantOK   bool
	}{
		{StageScoping, StageScanning, true},
		{StageScanning, StageTesting, true},
		{StageTesting, StageReporting, true},
		{StageReporting, StageDelivered, true},
		{StageDelivered, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			next, ok, err := seq.Next(tt.stage)
			if err != nil {
				t.Fatalf("Next(%v) error = %v", tt.stage, err)
			}
			if ok != tt.wantOK || next != tt.wantNext {
				t.Errorf("Next(%v) = (%v, %v), want (%v, %v)", tt.stage, next, ok, tt.wantNext, tt.wantOK)
			}
		})
	}

	if _, _, err := seq.Next(Stage("SHIPPING")); !errors.IsInvalidStage(err) {
		t.Error("Next() on unknown stage should return invalid_stage")
	}
}

func TestSequence_CanAdvance(t *testing.T) {
	for _, seq := range []*Sequence{Audit(), Pentest()} {
		stages := seq.Stages()
		for i, stage := range stages {
			can, err := seq.CanAdvance(stage)
			if err != nil {
				t.Fatalf("%s: CanAdvance(%v) error = %v", seq.Name(), stage, err)
			}
			wantCan := i < len(stages)-1
			if can != wantCan {
				t.Errorf("%s: CanAdvance(%v) = %v, want %v", seq.Name(), stage, can, wantCan)
			}
		}
	}
}

func TestSequence_IsTerminal(t *testing.T) {
	seq := Pentest()

	for i, stage := range seq.Stages() {
		terminal, err := seq.IsTerminal(stage)
		if err != nil {
			t.Fatalf("IsTerminal(%v) error = %v", stage, err)
		}
		wantTerminal := i == seq.Len()-1
		if terminal != wantTerminal {
			t.Errorf("IsTerminal(%v) = %v, want %v", stage, terminal, wantTerminal)
		}
	}
}

func TestSequence_StagesIsCopy(t *testing.T) {
	seq := Audit()
	stages := seq.Stages()
	stages[0] = Stage("MUTATED")

	if seq.First() != StageScoping {
		t.Error("mutating the returned slice must not affect the sequence")
	}
}
