package config

import "fmt"

// SensitiveString marshals as a fixed redaction token so secrets never
// leak into logs, error messages, or serialized run records.
type SensitiveString string

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return "********"
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// ExecutorConfig bounds the Executor's fan-out and failure policy.
type ExecutorConfig struct {
	Concurrency     int  `koanf:"concurrency"       env:"FMF_EXECUTOR_CONCURRENCY"       validate:"gte=1"`
	ContinueOnError bool `koanf:"continue_on_error" env:"FMF_EXECUTOR_CONTINUE_ON_ERROR"`
	RunDeadlineS    int  `koanf:"run_deadline_s"    env:"FMF_EXECUTOR_RUN_DEADLINE_S"    validate:"gte=0"`
}

// RetryConfig controls the exponential backoff applied around provider
// calls and other retryable operations.
type RetryConfig struct {
	InitialDelayS float64 `koanf:"initial_delay_s" env:"FMF_RETRY_INITIAL_DELAY_S" validate:"gt=0"`
	Multiplier    float64 `koanf:"multiplier"      env:"FMF_RETRY_MULTIPLIER"      validate:"gte=1"`
	Jitter        bool    `koanf:"jitter"          env:"FMF_RETRY_JITTER"`
	CapS          float64 `koanf:"cap_s"           env:"FMF_RETRY_CAP_S"           validate:"gt=0"`
	MaxElapsedS   float64 `koanf:"max_elapsed_s"   env:"FMF_RETRY_MAX_ELAPSED_S"   validate:"gt=0"`
	MaxRetries    int     `koanf:"max_retries"      env:"FMF_RETRY_MAX_RETRIES"     validate:"gte=0"`
}

// IdentityConfig selects the content-hash algorithm used for document,
// chunk, and blob identifiers.
type IdentityConfig struct {
	HashAlgo string `koanf:"hash_algo" env:"FMF_HASH_ALGO" validate:"oneof=blake2b xxh64"`
}

// IteratorConfig configures how source documents are split into
// executable units.
type IteratorConfig struct {
	Splitter    string `koanf:"splitter"     env:"FMF_ITER_SPLITTER"     validate:"oneof=by_sentence by_paragraph fixed rows images"`
	MaxTokens   int    `koanf:"max_tokens"   env:"FMF_ITER_MAX_TOKENS"   validate:"gt=0"`
	Overlap     int    `koanf:"overlap"      env:"FMF_ITER_OVERLAP"     validate:"gte=0"`
	TextColumn  string `koanf:"text_column"  env:"FMF_ITER_TEXT_COLUMN"`
	PassThrough []string `koanf:"pass_through" env:"FMF_ITER_PASS_THROUGH"`
	GroupSize   int    `koanf:"group_size"   env:"FMF_ITER_GROUP_SIZE"   validate:"gte=0"`
}

// RetrievalConfig configures retrieval-augmented context attachment.
type RetrievalConfig struct {
	Enabled    bool   `koanf:"enabled"        env:"FMF_RETRIEVAL_ENABLED"`
	Pipeline   string `koanf:"pipeline"       env:"FMF_RETRIEVAL_PIPELINE"`
	TopKText   int    `koanf:"top_k_text"     env:"FMF_RETRIEVAL_TOP_K_TEXT"     validate:"gte=0"`
	TopKImages int    `koanf:"top_k_images"   env:"FMF_RETRIEVAL_TOP_K_IMAGES"   validate:"gte=0"`
	QueryExpr  string `koanf:"query_expr"     env:"FMF_RETRIEVAL_QUERY_EXPR"`
	TextVar    string `koanf:"text_var"       env:"FMF_RETRIEVAL_TEXT_VAR"`
	ImageVar   string `koanf:"image_var"      env:"FMF_RETRIEVAL_IMAGE_VAR"`
	MaxChars   int    `koanf:"max_chars"      env:"FMF_RETRIEVAL_MAX_CHARS"      validate:"gte=0"`
}

// StepConfig is the declarative description of a single pipeline step,
// mirroring the on-disk pipeline definition shape.
type StepConfig struct {
	ID             string            `koanf:"id"              validate:"required"`
	PromptTemplate string            `koanf:"prompt_template"`
	PromptRef      string            `koanf:"prompt_ref"`
	InputBindings  map[string]string `koanf:"input_bindings"`
	Mode           string            `koanf:"mode"            validate:"omitempty,oneof=auto regular stream"`
	OutputName     string            `koanf:"output_name"     validate:"required"`
	OutputExpects  string            `koanf:"output_expects"  validate:"omitempty,oneof=text json"`
	OutputSchema   map[string]any    `koanf:"output_schema"`
	ParseRetries   int               `koanf:"parse_retries"   validate:"gte=0"`
	InferMode      string            `koanf:"infer_mode"      validate:"omitempty,oneof=auto regular stream"`
	Retrieval      *RetrievalConfig  `koanf:"retrieval"`
}

// LLMConfig describes the provider adapter used for inference calls.
type LLMConfig struct {
	Provider    string          `koanf:"provider"     env:"FMF_LLM_PROVIDER"`
	Model       string          `koanf:"model"        env:"FMF_LLM_MODEL"`
	APIKey      SensitiveString `koanf:"api_key"      env:"FMF_LLM_API_KEY"      sensitive:"true"`
	BaseURL     string          `koanf:"base_url"     env:"FMF_LLM_BASE_URL"`
	RPM         int             `koanf:"rpm"          env:"FMF_LLM_RPM"          validate:"gte=0"`
	TPM         int             `koanf:"tpm"          env:"FMF_LLM_TPM"          validate:"gte=0"`
	Concurrency int             `koanf:"concurrency"  env:"FMF_LLM_CONCURRENCY"  validate:"gte=0"`
}

// Config is the fully-resolved configuration for one pipeline run.
type Config struct {
	RunID          string          `koanf:"run_id"`
	Executor       ExecutorConfig  `koanf:"executor"`
	Retry          RetryConfig     `koanf:"retry"`
	Identity       IdentityConfig  `koanf:"identity"`
	Iterator       IteratorConfig  `koanf:"iterator"`
	LLM            LLMConfig       `koanf:"llm"`
	Steps          []StepConfig    `koanf:"steps"`
	ModeOverrideEnv string         `koanf:"mode_override_env" env:"FMF_MODE_OVERRIDE_ENV"`
	AllJoinMaxChars int            `koanf:"all_join_max_chars" env:"FMF_ALL_JOIN_MAX_CHARS" validate:"gte=0"`
	OutputDir      string          `koanf:"output_dir"`
	LogLevel       string          `koanf:"log_level"      env:"FMF_LOG_LEVEL"`
}

// Default returns a Config populated with the defaults documented in the
// configuration surface: conservative concurrency, jittered exponential
// backoff, blake2b identity hashing, sentence-based chunking.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Concurrency:     4,
			ContinueOnError: true,
			RunDeadlineS:    0,
		},
		Retry: RetryConfig{
			InitialDelayS: 0.2,
			Multiplier:    2.0,
			Jitter:        true,
			CapS:          5.0,
			MaxElapsedS:   30.0,
			MaxRetries:    5,
		},
		Identity: IdentityConfig{
			HashAlgo: "blake2b",
		},
		Iterator: IteratorConfig{
			Splitter:   "by_sentence",
			MaxTokens:  800,
			Overlap:    150,
			GroupSize:  1,
		},
		ModeOverrideEnv: "FMF_INFER_MODE",
		AllJoinMaxChars: 8000,
		LogLevel:        "info",
	}
}
