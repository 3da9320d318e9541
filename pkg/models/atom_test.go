package models

import "testing"

func TestAtomStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status AtomStatus
		want   bool
	}{
		{"pending is valid", AtomPending, true},
		{"in_progress is valid", AtomInProgress, true},
		{"blocked is valid", AtomBlocked, true},
		{"complete is valid", AtomComplete, true},
		{"verified is valid", AtomVerified, true},
		{"failed is valid", AtomFailed, true},
		{"empty string is invalid", AtomStatus(""), false},
		{"unknown status is invalid", AtomStatus("done"), false},
		{"uppercase is invalid", AtomStatus("PENDING"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("AtomStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAtomStatus_Terminal(t *testing.T) {
	tests := []struct {
		status AtomStatus
		want   bool
	}{
		{AtomPending, false},
		{AtomInProgress, false},
		{AtomBlocked, false},
		{AtomComplete, false},
		{AtomVerified, true},
		{AtomFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("AtomStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAtom_Weight(t *testing.T) {
	tests := []struct {
		name     string
		priority int
		want     int
	}{
		{"rank zero", 0, 1},
		{"rank one", 1, 1},
		{"rank five", 5, 8},
		{"last table entry", 11, 144},
		{"rank beyond table clamps", 50, 144},
		{"negative rank clamps to lowest", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Atom{Priority: tt.priority}
			if got := a.Weight(); got != tt.want {
				t.Errorf("Atom{Priority: %d}.Weight() = %d, want %d", tt.priority, got, tt.want)
			}
		})
	}
}
