package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "content-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for components that call the generative API.
type AIConfig struct {
	// Model is the generative model identifier.
	Model string `json:"model" yaml:"model"`

	// EmbedModel is the embedding model identifier. Empty disables
	// semantic similarity and the engine runs lexical-only.
	EmbedModel string `json:"embed_model,omitempty" yaml:"embed_model,omitempty"`

	// BaseURL is the API endpoint base (e.g. "https://api.example.com").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for rate-limited or
	// overloaded API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// GenerationConfig holds settings for the generation stages.
type GenerationConfig struct {
	AIConfig `yaml:",inline"`

	// NotesDir is the directory of source material files read by the
	// fetch stage (e.g. "notes/").
	NotesDir string `json:"notes_dir" yaml:"notes_dir"`

	// OutputDir is the directory for finished articles (e.g. "output/drafts/").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// TargetWords is the requested article length (default 800).
	TargetWords int `json:"target_words" yaml:"target_words"`
}

// QualityConfig holds acceptance thresholds for the merge stage's quality report.
type QualityConfig struct {
	// MinWords is the minimum acceptable article word count (default 300).
	MinWords int `json:"min_words" yaml:"min_words"`

	// MinSections is the minimum number of body sections (default 2).
	MinSections int `json:"min_sections" yaml:"min_sections"`

	// MaxGateRetries bounds restarts triggered by a rejected quality
	// report within one scheduler run (default 3).
	MaxGateRetries int `json:"max_gate_retries" yaml:"max_gate_retries"`
}

// SimilarityConfig holds settings for the similarity engine.
type SimilarityConfig struct {
	// ShingleSize is the word-window length for lexical shingles (default 3).
	ShingleSize int `json:"shingle_size" yaml:"shingle_size"`

	// LexicalWeight and SemanticWeight combine the two signals when both
	// are available (defaults 0.4 and 0.6). Scores are on a 0-100 scale.
	LexicalWeight  float64 `json:"lexical_weight" yaml:"lexical_weight"`
	SemanticWeight float64 `json:"semantic_weight" yaml:"semantic_weight"`

	// Threshold is the combined score above which a candidate is too
	// similar to an accepted article (default 72).
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// AllowRegeneration controls whether a too-similar verdict requests
	// a regenerated attempt (default true).
	AllowRegeneration bool `json:"allow_regeneration" yaml:"allow_regeneration"`
}

// RegenConfig holds settings for the regeneration orchestrator.
type RegenConfig struct {
	// MaxAttempts bounds full pipeline runs per job, including the first
	// (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// JobDelay is the pause between jobs in sequential batch mode.
	JobDelay time.Duration `json:"job_delay" yaml:"job_delay"`
}

// PipelineConfig groups all component configurations for the pipeline.
type PipelineConfig struct {
	Generation   GenerationConfig `json:"generation" yaml:"generation"`
	Quality      QualityConfig    `json:"quality" yaml:"quality"`
	Similarity   SimilarityConfig `json:"similarity" yaml:"similarity"`
	Regeneration RegenConfig      `json:"regeneration" yaml:"regeneration"`
	Links        HTTPConfig       `json:"links" yaml:"links"`
}

// DefaultPipelineConfig returns a PipelineConfig with every threshold set
// to its documented default.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Generation: GenerationConfig{
			AIConfig:    AIConfig{MaxRetries: 3},
			NotesDir:    "notes",
			OutputDir:   "output/drafts",
			TargetWords: 800,
		},
		Quality: QualityConfig{
			MinWords:       300,
			MinSections:    2,
			MaxGateRetries: 3,
		},
		Similarity: SimilarityConfig{
			ShingleSize:       3,
			LexicalWeight:     0.4,
			SemanticWeight:    0.6,
			Threshold:         72,
			AllowRegeneration: true,
		},
		Regeneration: RegenConfig{
			MaxAttempts: 3,
			JobDelay:    time.Second,
		},
		Links: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "content-engine/0.1",
		},
	}
}
