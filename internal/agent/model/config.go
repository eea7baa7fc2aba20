package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL      time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	MaxTurns int           `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
}

type LLMConfig struct {
	APIKey          string        `envconfig:"GEMINI_API_KEY"`
	BaseURL         string        `envconfig:"GEMINI_BASE_URL"`
	Model           string        `envconfig:"LLM_MODEL" default:"gemini-2.5-flash"`
	ClassifierModel string        `envconfig:"LLM_CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	EmbeddingModel  string        `envconfig:"LLM_EMBEDDING_MODEL" default:"text-embedding-004"`
	MaxTokens       int           `envconfig:"LLM_MAX_TOKENS" default:"2000"`
	Temperature     float32       `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	MaxRetries      int           `envconfig:"LLM_MAX_RETRIES" default:"3"`
	RetryBackoff    time.Duration `envconfig:"LLM_RETRY_BACKOFF" default:"500ms"`
	ClientTTL       time.Duration `envconfig:"LLM_CLIENT_TTL" default:"0s"`
}

// Enabled reports whether a provider can be constructed.
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

type GraphConfig struct {
	RunTimeout   time.Duration `envconfig:"GRAPH_RUN_TIMEOUT" default:"60s"`
	MaxRunSteps  int           `envconfig:"GRAPH_MAX_RUN_STEPS" default:"20"`
	HistoryTurns int           `envconfig:"GRAPH_HISTORY_TURNS" default:"5"`
	// ModelClassifier selects the model-based task classifier when a
	// provider is configured.
	ModelClassifier bool `envconfig:"GRAPH_MODEL_CLASSIFIER" default:"true"`
}

type RetrievalConfig struct {
	ScoreThreshold float64 `envconfig:"RETRIEVAL_SCORE_THRESHOLD" default:"0.5"`
	OverFetch      int     `envconfig:"RETRIEVAL_OVER_FETCH" default:"2"`
	Boost          float64 `envconfig:"RETRIEVAL_BOOST" default:"0.1"`
	DefaultLimit   int     `envconfig:"RETRIEVAL_DEFAULT_LIMIT" default:"5"`
	ConsultLimit   int     `envconfig:"RETRIEVAL_CONSULT_LIMIT" default:"8"`
	Currency       string  `envconfig:"RETRIEVAL_CURRENCY" default:"₽"`
}

type StreamConfig struct {
	ChunkSize int `envconfig:"STREAM_CHUNK_SIZE" default:"3"`
	Buffer    int `envconfig:"STREAM_BUFFER" default:"32"`
}

type CompanionConfig struct {
	HoroscopeURL      string        `envconfig:"HOROSCOPE_URL" default:"https://ohmanda.com/api/horoscope"`
	HoroscopeTimeout  time.Duration `envconfig:"HOROSCOPE_TIMEOUT" default:"12s"`
	MaxToolIterations int           `envconfig:"COMPANION_MAX_TOOL_ITERATIONS" default:"3"`
}

type QuizConfig struct {
	MaxToolIterations int `envconfig:"QUIZ_MAX_TOOL_ITERATIONS" default:"5"`
}

type AnalyticsConfig struct {
	RecordLimit int `envconfig:"ANALYTICS_RECORD_LIMIT" default:"500"`
}

type ConsultantConfig struct {
	StoreName         string `envconfig:"STORE_NAME" default:"Jewelry Concierge"`
	MaxToolIterations int    `envconfig:"CONSULTANT_MAX_TOOL_ITERATIONS" default:"2"`
	HistoryTurns      int    `envconfig:"CONSULTANT_HISTORY_TURNS" default:"5"`
	Recommendations   int    `envconfig:"CONSULTANT_RECOMMENDATIONS" default:"5"`
}
