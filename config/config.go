// Package config は環境変数から起動設定を読み込む
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DBDriverSQLite   = "sqlite3"
	DBDriverDynamoDB = "dynamodb"
)

type Config struct {
	ListenSocket string `env:"LISTEN_SOCKET" envDefault:":3000"`
	// 通知メッセージのリンク先
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	DBDriver              string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBPath                string `env:"DB_PATH"`
	DynamoTableNamePrefix string `env:"DYNAMO_TABLE_NAME_PREFIX"`
	DynamoLocal           string `env:"DYNAMO_LOCAL"`

	FileTokenSecret string        `env:"FILE_TOKEN_SECRET,required,notEmpty"`
	FileTokenTTL    time.Duration `env:"FILE_TOKEN_TTL" envDefault:"5m"`

	SlackBotToken      string `env:"SLACK_BOT_TOKEN"`
	SlackNotifyChannel string `env:"SLACK_NOTIFY_CHANNEL"`

	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	OpenAIModel           string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AzureOpenAIKey        string `env:"AZURE_OPENAI_KEY"`
	AzureOpenAIEndpoint   string `env:"AZURE_OPENAI_ENDPOINT"`
	AzureOpenAIAPIVersion string `env:"AZURE_OPENAI_API_VERSION"`

	S3Bucket   string        `env:"S3_BUCKET"`
	S3Endpoint string        `env:"S3_ENDPOINT"`
	PresignTTL time.Duration `env:"PRESIGN_TTL" envDefault:"15m"`

	MemberCacheTTL time.Duration `env:"MEMBER_CACHE_TTL" envDefault:"1m"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	var c Config
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DBDriverSQLite, DBDriverDynamoDB:
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", c.DBDriver)
	}
	if c.FileTokenTTL <= 0 {
		return fmt.Errorf("FILE_TOKEN_TTL must be positive: %s", c.FileTokenTTL)
	}
	if c.SlackBotToken != "" && c.SlackNotifyChannel == "" {
		return fmt.Errorf("SLACK_NOTIFY_CHANNEL is required when SLACK_BOT_TOKEN is set")
	}
	return nil
}

func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != ""
}
