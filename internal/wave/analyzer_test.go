package wave

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
)

func setupAnalyzer(t *testing.T) (*Analyzer, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(db, nil, trail.New(db), config.Default().Coherence), db
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzeMetrics(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantCurl       float64
		wantDivergence float64
		wantPotential  float64
		wantCoherent   bool
	}{
		{
			name:           "short settled statement",
			content:        "Short text.",
			wantCurl:       0,
			wantDivergence: 0.3,
			wantPotential:  0,
			wantCoherent:   true,
		},
		{
			name:           "concluding marker lowers divergence",
			content:        "We compared both options. Therefore we ship the first one.",
			wantCurl:       0,
			wantDivergence: 0.2,
			wantPotential:  0,
			wantCoherent:   true,
		},
		{
			name:           "questions raise divergence",
			content:        "Is this the right approach? What about the edge cases? Who owns it?",
			wantCurl:       0,
			wantDivergence: 0.6,
			wantPotential:  0,
			wantCoherent:   true,
		},
		{
			name:           "question count saturates",
			content:        "A? B? C? D? E? F? G? H? I?",
			wantCurl:       0,
			wantDivergence: 0.8,
			wantPotential:  0,
			wantCoherent:   false,
		},
		{
			name:           "speculative paragraphs add potential",
			content:        "We could cache the results here.\n\nPerhaps the index should be partial.",
			wantCurl:       0,
			wantDivergence: 0.3,
			wantPotential:  0.3,
			wantCoherent:   true,
		},
		{
			name: "repetition raises curl",
			content: "the same long phrase appears here again. " +
				"the same long phrase appears here again.",
			wantCurl:       0.5,
			wantDivergence: 0.3,
			wantPotential:  0,
			wantCoherent:   true,
		},
		{
			name: "heavy repetition flips coherent",
			content: strings.Repeat(
				"the same long phrase appears here again. ", 4),
			wantCurl:       0.75,
			wantDivergence: 0.3,
			wantPotential:  0,
			wantCoherent:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer, _ := setupAnalyzer(t)

			got, err := analyzer.Analyze(context.Background(), tt.content, "test")
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if !closeTo(got.Curl, tt.wantCurl) {
				t.Errorf("Curl = %v, want %v", got.Curl, tt.wantCurl)
			}
			if !closeTo(got.Divergence, tt.wantDivergence) {
				t.Errorf("Divergence = %v, want %v", got.Divergence, tt.wantDivergence)
			}
			if !closeTo(got.Potential, tt.wantPotential) {
				t.Errorf("Potential = %v, want %v", got.Potential, tt.wantPotential)
			}
			if got.Coherent != tt.wantCoherent {
				t.Errorf("Coherent = %v, want %v", got.Coherent, tt.wantCoherent)
			}
			if got.Trivial {
				t.Error("Trivial = true, want false")
			}
			if got.Hash == "" {
				t.Error("Hash is empty")
			}
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	analyzer, _ := setupAnalyzer(t)
	ctx := context.Background()
	content := "We considered three designs. Therefore the simplest one wins."

	first, err := analyzer.Analyze(ctx, content, "round-1")
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := analyzer.Analyze(ctx, content, "round-2")
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if first.Hash != second.Hash {
		t.Errorf("hashes differ: %s vs %s", first.Hash, second.Hash)
	}
	if !closeTo(first.CoherenceScore, second.CoherenceScore) {
		t.Errorf("scores differ: %v vs %v", first.CoherenceScore, second.CoherenceScore)
	}
	// The second call is served from the store; the stored timestamp
	// and source come back unchanged.
	if !second.Timestamp.Equal(first.Timestamp) {
		t.Error("cached analysis was recomputed instead of served")
	}
	if second.Source != "round-1" {
		t.Errorf("cached Source = %q, want %q", second.Source, "round-1")
	}
}

func TestAnalyzeTrivialContent(t *testing.T) {
	analyzer, _ := setupAnalyzer(t)
	cfg := config.Default().Coherence
	cfg.MinContentLength = 64
	analyzer.UpdateConfig(cfg)

	got, err := analyzer.Analyze(context.Background(), "tiny", "test")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !got.Trivial {
		t.Error("Trivial = false, want true")
	}
	if !got.Coherent {
		t.Error("Coherent = false, want true")
	}
	if got.Curl != 0 || got.Divergence != 0 || got.Potential != 0 {
		t.Errorf("trivial content scored: curl=%v div=%v pot=%v",
			got.Curl, got.Divergence, got.Potential)
	}
}

func TestAnalyzeAppendsTrailPerCall(t *testing.T) {
	analyzer, db := setupAnalyzer(t)
	ctx := context.Background()
	content := "One settled paragraph about the chosen design."

	if _, err := analyzer.Analyze(ctx, content, "test"); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if _, err := analyzer.Analyze(ctx, content, "test"); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	entries, err := db.QueryTrail(state.TrailFilter{VortexID: trail.VortexWave})
	if err != nil {
		t.Fatalf("QueryTrail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d trail entries, want 2", len(entries))
	}
}

func TestNormalizePhrase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello,   World", "hello world"},
		{"  MIXED case \t text ", "mixed case text"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := normalizePhrase(tt.in); got != tt.want {
			t.Errorf("normalizePhrase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
