// Package wave implements the coherence analyzer. It scores text for
// repetition (curl), unresolved expansion (divergence), and latent
// potential, producing a content-addressed WaveAnalysis.
package wave

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/internal/blob"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// longPhraseMin is the normalized-fragment length above which a phrase
// counts toward the repetition metric.
const longPhraseMin = 20

// concludingMarkers flip divergence to its low value when present.
var concludingMarkers = []string{
	"therefore", "thus", "in conclusion", "finally", "to summarize",
}

// speculativeMarkers mark a paragraph as latent, unexpanded content.
var speculativeMarkers = []string{
	"could", "might", "perhaps", "possibly", "todo", "tbd", "future work",
}

// Analyzer scores content and caches results by content hash.
type Analyzer struct {
	waves state.WaveStore
	blobs *blob.Store
	trail *trail.Trail

	mu  sync.RWMutex
	cfg config.CoherenceConfig

	now func() time.Time
}

// New creates an Analyzer. The blob store may be nil when no large-body
// persistence is wanted (tests, embedded use).
func New(waves state.WaveStore, blobs *blob.Store, tr *trail.Trail, cfg config.CoherenceConfig) *Analyzer {
	return &Analyzer{
		waves: waves,
		blobs: blobs,
		trail: tr,
		cfg:   cfg,
		now:   time.Now,
	}
}

// UpdateConfig swaps the thresholds and weights, for live config reload.
func (a *Analyzer) UpdateConfig(cfg config.CoherenceConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

func (a *Analyzer) config() config.CoherenceConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Analyze scores the content and returns its WaveAnalysis. Identical
// content under identical thresholds yields bit-identical scores; a
// previously analyzed hash is served from the store rather than
// recomputed. Every call appends one decision trail entry.
func (a *Analyzer) Analyze(ctx context.Context, content, source string) (*models.WaveAnalysis, error) {
	hash := blob.Hash([]byte(content))

	cached, err := a.waves.GetWave(hash)
	if err != nil {
		return nil, errs.Storage("lookup wave", err)
	}
	if cached != nil {
		if err := a.record(ctx, cached, "served cached analysis"); err != nil {
			return nil, err
		}
		return cached, nil
	}

	cfg := a.config()
	analysis := a.compute(content, cfg)
	analysis.Hash = hash
	analysis.Source = source
	analysis.Timestamp = a.now()

	if a.blobs != nil && len(content) > 0 {
		if _, err := a.blobs.Put([]byte(content)); err != nil {
			return nil, errs.Storage("store content blob", err)
		}
	}
	if err := a.waves.PutWave(analysis); err != nil {
		return nil, errs.Storage("store wave", err)
	}
	if err := a.record(ctx, analysis, "analyzed content"); err != nil {
		return nil, err
	}
	return analysis, nil
}

// record appends the per-call provenance entry.
func (a *Analyzer) record(ctx context.Context, w *models.WaveAnalysis, decision string) error {
	score := w.CoherenceScore
	_, err := a.trail.Append(ctx, models.TrailEntry{
		VortexID:       trail.VortexWave,
		Decision:       decision,
		Outcome:        models.OutcomeSuccess,
		CoherenceScore: &score,
		Context:        models.WaveContext(w.Hash),
	})
	return err
}

// compute derives the three metrics and the combined score.
func (a *Analyzer) compute(content string, cfg config.CoherenceConfig) *models.WaveAnalysis {
	if len(content) < cfg.MinContentLength {
		// Zero-signal content is reported coherent but flagged trivial
		// so callers can apply their own policy.
		return &models.WaveAnalysis{Coherent: true, Trivial: true}
	}

	curl := measureCurl(content)
	divergence := measureDivergence(content)
	potential := measurePotential(content)

	score := cfg.Weights.Curl*(1-curl) +
		cfg.Weights.Potential*potential +
		cfg.Weights.Divergence*(1-math.Abs(divergence-0.5))

	return &models.WaveAnalysis{
		Curl:           curl,
		Divergence:     divergence,
		Potential:      potential,
		CoherenceScore: score,
		Coherent: curl < cfg.CurlCritical &&
			math.Abs(divergence) < cfg.DivergenceCritical,
	}
}

// measureCurl computes the repetition metric: the fraction of long
// phrases that duplicate an earlier one.
func measureCurl(content string) float64 {
	phrases := longPhrases(content)
	if len(phrases) == 0 {
		return 0
	}

	unique := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		unique[p] = true
	}
	return 1 - float64(len(unique))/float64(len(phrases))
}

// measureDivergence computes the unresolved-expansion metric.
func measureDivergence(content string) float64 {
	lower := strings.ToLower(content)
	for _, marker := range concludingMarkers {
		if strings.Contains(lower, marker) {
			return 0.2
		}
	}
	questions := strings.Count(content, "?")
	return math.Min(0.3+0.1*float64(questions), 0.8)
}

// measurePotential computes the latent-content metric from the density
// of speculative markers across paragraphs.
func measurePotential(content string) float64 {
	count := 0
	for _, paragraph := range strings.Split(content, "\n\n") {
		lower := strings.ToLower(paragraph)
		for _, marker := range speculativeMarkers {
			if strings.Contains(lower, marker) {
				count++
				break
			}
		}
	}
	return math.Min(0.15*float64(count), 1.0)
}

// longPhrases segments content into case-folded, punctuation-stripped
// fragments and keeps those longer than longPhraseMin characters.
func longPhrases(content string) []string {
	fragments := strings.FieldsFunc(content, func(r rune) bool {
		switch r {
		case '.', '!', '?', ';', ':', '\n':
			return true
		}
		return false
	})

	var phrases []string
	for _, f := range fragments {
		normalized := normalizePhrase(f)
		if len(normalized) > longPhraseMin {
			phrases = append(phrases, normalized)
		}
	}
	return phrases
}

// normalizePhrase case-folds, strips punctuation, and collapses
// whitespace so near-duplicate phrasing hashes to the same key.
func normalizePhrase(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t':
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
