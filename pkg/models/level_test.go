package models

import "testing"

func TestGrantLevel_Valid(t *testing.T) {
	tests := []struct {
		name  string
		level GrantLevel
		want  bool
	}{
		{"observer is valid", LevelObserver, true},
		{"reader is valid", LevelReader, true},
		{"contributor is valid", LevelContributor, true},
		{"maintainer is valid", LevelMaintainer, true},
		{"admin is valid", LevelAdmin, true},
		{"negative is invalid", GrantLevel(-1), false},
		{"above admin is invalid", GrantLevel(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.Valid(); got != tt.want {
				t.Errorf("GrantLevel(%d).Valid() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestGrantLevel_Covers(t *testing.T) {
	tests := []struct {
		name     string
		level    GrantLevel
		required GrantLevel
		want     bool
	}{
		{"equal level covers", LevelMaintainer, LevelMaintainer, true},
		{"higher level covers", LevelAdmin, LevelReader, true},
		{"lower level does not cover", LevelContributor, LevelAdmin, false},
		{"observer covers nothing above itself", LevelObserver, LevelReader, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.Covers(tt.required); got != tt.want {
				t.Errorf("GrantLevel(%d).Covers(%d) = %v, want %v",
					tt.level, tt.required, got, tt.want)
			}
		})
	}
}

func TestGrantLevel_String(t *testing.T) {
	tests := []struct {
		level GrantLevel
		want  string
	}{
		{LevelObserver, "observer"},
		{LevelReader, "reader"},
		{LevelContributor, "contributor"},
		{LevelMaintainer, "maintainer"},
		{LevelAdmin, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("GrantLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}
