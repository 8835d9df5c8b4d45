package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// HTTPサーバー
	Port string

	// 生成サービス
	Generator GeneratorConfig

	// SQLiteファイルパス
	DBPath string

	// 一括処理ワーカー
	Worker WorkerConfig

	// アップロード上限（バイト）
	MaxUploadBytes int64

	// 終了済みジョブの保持日数（0 なら削除しない）
	RetentionDays int

	// ログ設定
	LogLevel  string
	LogFormat string

	// スタブ生成サービスを /stub にマウントする（ローカル開発用）
	StubGenerator bool
}

// GeneratorConfig はリモート生成サービスの設定
type GeneratorConfig struct {
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// WorkerConfig は一括処理ワーカーの設定
type WorkerConfig struct {
	Interval time.Duration
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Generator: GeneratorConfig{
			BaseURL:        getEnv("GENERATOR_BASE_URL", "http://localhost:8000"),
			PollInterval:   getEnvAsDuration("POLL_INTERVAL", 6*time.Second),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		DBPath: getEnv("DB_PATH", "data/casegen.db"),
		Worker: WorkerConfig{
			Interval: getEnvAsDuration("WORKER_INTERVAL", time.Second),
		},
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
		RetentionDays:  getEnvAsInt("JOB_RETENTION_DAYS", 0),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		StubGenerator:  getEnvAsBool("STUB_GENERATOR", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は設定値を検証します
func (c *Config) validate() error {
	u, err := url.Parse(c.Generator.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid GENERATOR_BASE_URL %q", c.Generator.BaseURL)
	}
	if c.Generator.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Generator.PollInterval)
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("WORKER_INTERVAL must be positive, got %s", c.Worker.Interval)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します
// "6s" のような表記のほか、単位なしの数値は秒として扱います
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
