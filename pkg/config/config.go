package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL         string  `yaml:"base_url"`
		Model           string  `yaml:"model"`
		EmbedModel      string  `yaml:"embed_model"`
		MaxAnswerTokens int     `yaml:"max_answer_tokens"`
		Temperature     float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Segmenter struct {
		MaxChunkSize int `yaml:"max_chunk_size"`
		Overlap      int `yaml:"overlap"`
	} `yaml:"segmenter"`

	Retrieval struct {
		TopK             int     `yaml:"top_k"`
		MinSimilarity    float64 `yaml:"min_similarity"`
		MaxContextLength int     `yaml:"max_context_length"`
		ExpandContext    bool    `yaml:"expand_context"`
	} `yaml:"retrieval"`

	Synthesis struct {
		MaxContextChars  int  `yaml:"max_context_chars"`
		IncludeCitations bool `yaml:"include_citations"`
	} `yaml:"synthesis"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// .env values feed the env merge below; a missing file is fine
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/askdocs/config.yaml"),
			"/etc/askdocs/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxAnswerTokens == 0 {
		config.LLM.MaxAnswerTokens = 1000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Segmenter.MaxChunkSize == 0 {
		config.Segmenter.MaxChunkSize = 1000
	}
	if config.Segmenter.Overlap == 0 {
		config.Segmenter.Overlap = 200
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 10
	}
	if config.Retrieval.MinSimilarity == 0 {
		config.Retrieval.MinSimilarity = 0.3
	}
	if config.Retrieval.MaxContextLength == 0 {
		config.Retrieval.MaxContextLength = 8000
	}

	if config.Synthesis.MaxContextChars == 0 {
		config.Synthesis.MaxContextChars = 12000
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Server.Port)
	}
}
