package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Source    SourceConfig    `yaml:"source"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	EmbedLLM  LLMConfig       `yaml:"embed_llm"`
	ReasonLLM LLMConfig       `yaml:"reason_llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Patients  PatientsConfig  `yaml:"patients"`
	Server    ServerConfig    `yaml:"server"`
}

// StoreConfig configures the persistent vector index.
type StoreConfig struct {
	Path          string  `yaml:"path"`
	Collection    string  `yaml:"collection"`
	Dimension     int     `yaml:"dimension"`
	Epsilon       float64 `yaml:"epsilon"`
	InMemory      bool    `yaml:"in_memory"`
	EncryptionKey string  `yaml:"encryption_key"`
}

// SourceConfig locates the guideline document. When Path does not exist
// it is downloaded from URL before ingestion.
type SourceConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

type ChunkerConfig struct {
	TargetSize   int    `yaml:"target_size"`
	OverlapSize  int    `yaml:"overlap_size"`
	MinParagraph int    `yaml:"min_paragraph"`
	IDPrefix     string `yaml:"id_prefix"`
}

type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	AssessmentTopK      int     `yaml:"assessment_top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	BatchSize           int     `yaml:"batch_size"`
	Workers             int     `yaml:"workers"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Key     string `yaml:"key"`
	Mock    bool   `yaml:"mock"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type PatientsConfig struct {
	// Backend selects the patient store: "file" or "postgres".
	Backend string `yaml:"backend"`
	File    string `yaml:"file"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// Duration parses Go duration strings such as "30s" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	mergeWithEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with all defaults applied, for use when no config
// file is present.
func Default() *Config {
	cfg := &Config{}
	mergeWithEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/vector_store"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "ng12_guidelines"
	}
	if cfg.Store.Dimension == 0 {
		cfg.Store.Dimension = 768
	}
	if cfg.Store.Epsilon == 0 {
		cfg.Store.Epsilon = 0.001
	}

	if cfg.Source.Path == "" {
		cfg.Source.Path = "./data/ng12.pdf"
	}
	if cfg.Source.URL == "" {
		cfg.Source.URL = "https://www.nice.org.uk/guidance/ng12/resources/suspected-cancer-recognition-and-referral-pdf-1837268071621"
	}

	if cfg.Chunker.TargetSize == 0 {
		cfg.Chunker.TargetSize = 1200
	}
	if cfg.Chunker.OverlapSize == 0 {
		cfg.Chunker.OverlapSize = 200
	}
	if cfg.Chunker.MinParagraph == 0 {
		cfg.Chunker.MinParagraph = 20
	}
	if cfg.Chunker.IDPrefix == "" {
		cfg.Chunker.IDPrefix = "ng12"
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.AssessmentTopK == 0 {
		cfg.Retrieval.AssessmentTopK = 8
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.001
	}
	if cfg.Retrieval.BatchSize == 0 {
		cfg.Retrieval.BatchSize = 10
	}
	if cfg.Retrieval.Workers == 0 {
		cfg.Retrieval.Workers = 4
	}

	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text:latest"
	}
	if cfg.ReasonLLM.BaseURL == "" {
		cfg.ReasonLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.ReasonLLM.Model == "" {
		cfg.ReasonLLM.Model = "mistral"
	}

	if cfg.Patients.Backend == "" {
		cfg.Patients.Backend = "file"
	}
	if cfg.Patients.File == "" {
		cfg.Patients.File = "./data/patients.json"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(120 * time.Second)
	}
}

func mergeWithEnv(cfg *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.EmbedLLM.BaseURL = baseURL
		cfg.ReasonLLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if key := os.Getenv("OPENROUTER_KEY"); key != "" {
		cfg.ReasonLLM.Key = key
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Store.Dimension < 1 {
		errs = append(errs, ValidationError{
			Field:   "store.dimension",
			Message: "dimension must be positive",
		})
	}
	if c.Store.Epsilon <= 0 || c.Store.Epsilon >= 1 {
		errs = append(errs, ValidationError{
			Field:   "store.epsilon",
			Message: "epsilon must be in (0, 1)",
		})
	}

	if c.Chunker.TargetSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "chunker.target_size",
			Message: "target_size must be positive",
		})
	}
	if c.Chunker.OverlapSize < 0 || c.Chunker.OverlapSize >= c.Chunker.TargetSize {
		errs = append(errs, ValidationError{
			Field:   "chunker.overlap_size",
			Message: "overlap_size must be non-negative and less than target_size",
		})
	}

	if c.Retrieval.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.similarity_threshold",
			Message: "similarity_threshold must be in [0, 1]",
		})
	}
	if c.Retrieval.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.workers",
			Message: "workers must be positive",
		})
	}

	if c.Patients.Backend != "file" && c.Patients.Backend != "postgres" {
		errs = append(errs, ValidationError{
			Field:   "patients.backend",
			Message: "backend must be \"file\" or \"postgres\"",
		})
	}
	if c.Patients.Backend == "postgres" && c.Database.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "database.url",
			Message: "database URL is required for the postgres patient store",
		})
	}

	return errs
}
