package commands

import (
	"errors"
	"fmt"
	"slotwatch/internal/notify/emailnotify"
	"slotwatch/internal/notify/natsnotify"
	"slotwatch/internal/store/redisstore"
	"slotwatch/lib/awsutil"
	"slotwatch/lib/configutil"
	"time"
)

const (
	StoreDynamo = "dynamo"
	StoreSqlite = "sqlite"
	StoreRedis  = "redis"

	NotifyLog   = "log"
	NotifySns   = "sns"
	NotifyEmail = "email"
	NotifyNats  = "nats"
)

type PageConfig struct {
	Url              string `json:"url" env:"PAGE_URL"`
	// an optional css selector, only text inside the matched elements is scanned
	Selector         string `json:"selector"`
	UserAgent        string `json:"user_agent"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

func (c PageConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type DynamoConfig struct {
	Table string         `json:"table" env:"TIMESLOTS_TABLE_NAME"`
	Aws   awsutil.Config `json:"aws"`
}

type SqliteConfig struct {
	// a file path or a libsql:// url
	Path string `json:"path"`
}

type StoreConfig struct {
	// one of dynamo, sqlite or redis
	Kind   string            `json:"kind"`
	Dynamo DynamoConfig      `json:"dynamo"`
	Sqlite SqliteConfig      `json:"sqlite"`
	Redis  redisstore.Config `json:"redis"`
}

type SnsConfig struct {
	TopicArn string         `json:"topic_arn" env:"NOTIFICATION_TOPIC_ARN"`
	Aws      awsutil.Config `json:"aws"`
}

type NotifyConfig struct {
	// one of log, sns, email or nats
	Kind  string             `json:"kind"`
	Sns   SnsConfig          `json:"sns"`
	Email emailnotify.Config `json:"email"`
	Nats  natsnotify.Config  `json:"nats"`
}

type Config struct {
	Page   PageConfig   `json:"page"`
	Store  StoreConfig  `json:"store"`
	Notify NotifyConfig `json:"notify"`

	// a cron spec used by the watch command
	Schedule string `json:"schedule" env:"SLOTWATCH_SCHEDULE"`
	// the IANA timezone the schedule is interpreted in, defaults to the local timezone
	Timezone string `json:"timezone"`
	// the port the serve command listens on
	Port int `json:"port"`
}

func defaultConfig() Config {
	return Config{
		Store:    StoreConfig{Kind: StoreDynamo},
		Notify:   NotifyConfig{Kind: NotifySns},
		Schedule: "*/5 * * * *",
		Port:     8080,
	}
}

// LoadConfig layers the defaults, the config file at path (if it exists) and the environment
// variables named in the env tags, in increasing priority.
func LoadConfig(path string) (Config, error) {
	return configutil.Load(path, defaultConfig())
}

// ValidateScrape checks what every command that fetches the page needs.
func (c Config) ValidateScrape() error {
	if c.Page.Url == "" {
		return errors.New("page url is required (page.url or PAGE_URL)")
	}
	return nil
}

func (c Config) ValidateStore() error {
	switch c.Store.Kind {
	case StoreDynamo:
		if c.Store.Dynamo.Table == "" {
			return errors.New("dynamo table is required (store.dynamo.table or TIMESLOTS_TABLE_NAME)")
		}
	case StoreSqlite:
		if c.Store.Sqlite.Path == "" {
			return errors.New("sqlite path is required (store.sqlite.path)")
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("redis address is required (store.redis.addr)")
		}
	default:
		return fmt.Errorf("unknown store kind '%s'", c.Store.Kind)
	}
	return nil
}

func (c Config) ValidateNotify() error {
	switch c.Notify.Kind {
	case NotifyLog, NotifyNats:
	case NotifySns:
		if c.Notify.Sns.TopicArn == "" {
			return errors.New("sns topic arn is required (notify.sns.topic_arn or NOTIFICATION_TOPIC_ARN)")
		}
	case NotifyEmail:
		err := c.Notify.Email.Validate()
		if err != nil {
			return fmt.Errorf("email: %w", err)
		}
	default:
		return fmt.Errorf("unknown notify kind '%s'", c.Notify.Kind)
	}
	return nil
}

// Validate checks everything a full run needs.
func (c Config) Validate() error {
	return errors.Join(
		c.ValidateScrape(),
		c.ValidateStore(),
		c.ValidateNotify(),
	)
}
