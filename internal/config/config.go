// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Orchestration OrchestrationConfig `yaml:"orchestration" mapstructure:"orchestration"`
	Scoring       ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Learner       LearnerConfig       `yaml:"learner" mapstructure:"learner"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig    `yaml:"redis" mapstructure:"redis"`
	TTL   CacheTTLConfig `yaml:"ttl" mapstructure:"ttl"`
}

// CacheTTLConfig 各类缓存的过期时间
// 偏好缓存长 TTL（小时级，变化少）；场景列表短 TTL，且写入时立即失效，
// TTL 只是兜底而非主失效路径。
type CacheTTLConfig struct {
	Preferences time.Duration `yaml:"preferences" mapstructure:"preferences"`
	SceneList   time.Duration `yaml:"scene_list" mapstructure:"scene_list"`
	ImageFacts  time.Duration `yaml:"image_facts" mapstructure:"image_facts"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Enabled bool         `yaml:"enabled" mapstructure:"enabled"`
	Milvus  MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	IndexType          string `yaml:"index_type" mapstructure:"index_type"`
	MetricType         string `yaml:"metric_type" mapstructure:"metric_type"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// OrchestrationConfig 编排管线配置
type OrchestrationConfig struct {
	// SelectorTimeout 意图分类模型调用超时，超时按 NoCapabilityMatch 处理
	SelectorTimeout time.Duration `yaml:"selector_timeout" mapstructure:"selector_timeout"`
	// CommitRetryOnce 提交冲突时是否用最新版本号重试一次
	CommitRetryOnce bool `yaml:"commit_retry_once" mapstructure:"commit_retry_once"`
	// TrivialHistoryLimit Trivial 档取最近几条消息
	TrivialHistoryLimit int `yaml:"trivial_history_limit" mapstructure:"trivial_history_limit"`
	// ModerateHistoryLimit Moderate 档取最近几条消息
	ModerateHistoryLimit int `yaml:"moderate_history_limit" mapstructure:"moderate_history_limit"`
	// FullHistoryLimit Complex/Analytical 档历史上限（防止无界上下文）
	FullHistoryLimit int `yaml:"full_history_limit" mapstructure:"full_history_limit"`
	// ProgressBufferSize 单次编排进度事件缓冲大小
	ProgressBufferSize int `yaml:"progress_buffer_size" mapstructure:"progress_buffer_size"`
}

// ScoringConfig 模板评分配置
// 权重是策略常量而非学习值，必须可以不改代码直接调参。
type ScoringConfig struct {
	Weights   ScoringWeights     `yaml:"weights" mapstructure:"weights"`
	Penalties map[string]float64 `yaml:"penalties" mapstructure:"penalties"`
	// KeywordCap 关键词命中数达到该值即视为满分，抑制关键词堆砌
	KeywordCap int `yaml:"keyword_cap" mapstructure:"keyword_cap"`
}

// ScoringWeights 三项子分的加权
type ScoringWeights struct {
	ProfileMatch        float64 `yaml:"profile_match" mapstructure:"profile_match"`
	KeywordMatch        float64 `yaml:"keyword_match" mapstructure:"keyword_match"`
	ContentAvailability float64 `yaml:"content_availability" mapstructure:"content_availability"`
}

// LearnerConfig 偏好学习配置
type LearnerConfig struct {
	// MinTurns 触发学习所需的最少历史轮次
	MinTurns int `yaml:"min_turns" mapstructure:"min_turns"`
	// MaxTurns 超过该轮次直接跳过分析，限制后台成本
	MaxTurns int `yaml:"max_turns" mapstructure:"max_turns"`
	// ExplicitConfidence 显式陈述的初始置信度
	ExplicitConfidence float64 `yaml:"explicit_confidence" mapstructure:"explicit_confidence"`
	// PatternConfidence 模式推断的初始置信度
	PatternConfidence float64 `yaml:"pattern_confidence" mapstructure:"pattern_confidence"`
	// PatternMinRepeats 模式需要重复出现的最少次数
	PatternMinRepeats int `yaml:"pattern_min_repeats" mapstructure:"pattern_min_repeats"`
	// ReinforceIncrement 模式再次出现时的置信度增量
	ReinforceIncrement float64 `yaml:"reinforce_increment" mapstructure:"reinforce_increment"`
	// ContradictionDecrement 显式矛盾时的置信度减量
	ContradictionDecrement float64 `yaml:"contradiction_decrement" mapstructure:"contradiction_decrement"`
	// PublishThreshold 低于该置信度的证据直接丢弃，不落库
	PublishThreshold float64 `yaml:"publish_threshold" mapstructure:"publish_threshold"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret            string        `yaml:"secret" mapstructure:"secret"`
	Issuer            string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration        time.Duration `yaml:"expiration" mapstructure:"expiration"`
	RefreshExpiration time.Duration `yaml:"refresh_expiration" mapstructure:"refresh_expiration"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
