package models

import "time"

// WaveAnalysis holds the coherence metrics computed for a piece of content.
// It is content-addressed by Hash and immutable once computed: analyzing
// the same bytes under the same thresholds always yields the same values.
type WaveAnalysis struct {
	// Hash is the SHA-256 hex digest of the analyzed content.
	Hash string `json:"hash"`
	// Curl measures repetition: the fraction of near-duplicate long phrases, in [0,1].
	Curl float64 `json:"curl"`
	// Divergence measures unresolved expansion: lower when concluding structure exists, in [0,1].
	Divergence float64 `json:"divergence"`
	// Potential measures latent content: density of speculative markers, in [0,1].
	Potential float64 `json:"potential"`
	// CoherenceScore is the weighted combination of the three metrics.
	CoherenceScore float64 `json:"coherence_score"`
	// Coherent reports whether curl and divergence are inside the critical thresholds.
	Coherent bool `json:"coherent"`
	// Trivial is set when the content was below the minimum scoring length
	// and the zero-signal defaults were applied.
	Trivial bool `json:"trivial,omitempty"`
	// Source identifies the caller that submitted the content.
	Source string `json:"source,omitempty"`
	// Timestamp is when the analysis was first computed.
	Timestamp time.Time `json:"timestamp"`
}
