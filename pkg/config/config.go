// Package config 提供配置加载功能
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint 平台弹幕服务地址
const DefaultEndpoint = "ws://broadcastlv.chat.bilibili.com:2244/sub"

// 环境变量覆盖项（也可写在 .env 中）
const (
	EnvUserID       = "DANMUJI_USER_ID"
	EnvAuthKey      = "DANMUJI_AUTH_KEY"
	EnvBridgeSecret = "DANMUJI_BRIDGE_SECRET"
	EnvOpenAIKey    = "DANMUJI_OPENAI_API_KEY"
)

// Config 弹幕姬配置
type Config struct {
	Connector ConnectorConfig `yaml:"connector"`
	Bus       BusConfig       `yaml:"bus"`
	Rooms     []RoomConfig    `yaml:"rooms"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ConnectorConfig 平台连接配置
type ConnectorConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ReadBufferSize    int           `yaml:"read_buffer_size"`
	WriteBufferSize   int           `yaml:"write_buffer_size"`
	UserAgent         string        `yaml:"user_agent"`
	Origin            string        `yaml:"origin"`
	AuthKey           string        `yaml:"auth_key"` // 进房认证 token，可选
}

// BusConfig 事件总线配置
type BusConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// RoomConfig 启动时自动连接的房间
type RoomConfig struct {
	RoomID int64  `yaml:"room_id"`
	UserID uint64 `yaml:"user_id"` // 0 表示匿名
}

// BridgeConfig UI 桥接服务配置
type BridgeConfig struct {
	Addr             string        `yaml:"addr"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	JWTSecret        string        `yaml:"jwt_secret"`
}

// PluginsConfig 插件配置
type PluginsConfig struct {
	ReplyRate   float64           `yaml:"reply_rate"` // 每秒最多回复条数
	ReplyBurst  int               `yaml:"reply_burst"`
	GiftThanker GiftThankerConfig `yaml:"gift_thanker"`
	Chatbot     ChatbotConfig     `yaml:"chatbot"`
}

// GiftThankerConfig 礼物答谢配置
type GiftThankerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Template string `yaml:"template"`
}

// ChatbotConfig 聊天机器人配置
type ChatbotConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Trigger   string        `yaml:"trigger"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// KafkaConfig Kafka 配置（事件归档与回复投递）
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	EventTopic   string        `yaml:"event_topic"`
	ReplyTopic   string        `yaml:"reply_topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// Enabled Kafka 是否启用
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// NATSConfig NATS 配置（事件转发）
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Connector: ConnectorConfig{
			Endpoint:          DefaultEndpoint,
			HeartbeatInterval: 30 * time.Second,
			ReconnectDelay:    3 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			WriteTimeout:      5 * time.Second,
			ReadBufferSize:    4096,
			WriteBufferSize:   1024,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Origin:            "https://live.bilibili.com",
		},
		Bus: BusConfig{
			SubscriberBuffer: 256,
		},
		Bridge: BridgeConfig{
			Addr:             ":8000",
			HeartbeatTimeout: 30 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Plugins: PluginsConfig{
			ReplyRate:  0.5,
			ReplyBurst: 3,
			GiftThanker: GiftThankerConfig{
				Enabled:  true,
				Template: DefaultThankTemplate,
			},
			Chatbot: ChatbotConfig{
				Trigger:   "@bot ",
				BaseURL:   "https://api.openai.com/v1",
				Model:     "gpt-3.5-turbo",
				MaxTokens: 1024,
				Timeout:   30 * time.Second,
			},
		},
		Kafka: KafkaConfig{
			EventTopic:   "danmuji.events",
			ReplyTopic:   "danmuji.replies",
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
		},
		NATS: NATSConfig{
			SubjectPrefix: "danmuji.room",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultThankTemplate 默认礼物答谢模板
const DefaultThankTemplate = "感谢{{.Uname}}投喂的{{.Count}}个{{.GiftName}}~"

// Load 加载配置：默认值 → YAML 文件 → .env / 环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvUserID); v != "" {
		uid, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUserID, err)
		}
		for i := range c.Rooms {
			if c.Rooms[i].UserID == 0 {
				c.Rooms[i].UserID = uid
			}
		}
	}
	if v := os.Getenv(EnvAuthKey); v != "" {
		c.Connector.AuthKey = v
	}
	if v := os.Getenv(EnvBridgeSecret); v != "" {
		c.Bridge.JWTSecret = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		c.Plugins.Chatbot.APIKey = v
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	if c.Connector.Endpoint == "" {
		errs = append(errs, errors.New("connector.endpoint is required"))
	}
	if c.Connector.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("connector.heartbeat_interval must be positive"))
	}
	if c.Connector.ReconnectDelay < 0 {
		errs = append(errs, errors.New("connector.reconnect_delay cannot be negative"))
	}
	if c.Bus.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("bus.subscriber_buffer must be positive"))
	}
	for i, r := range c.Rooms {
		if r.RoomID <= 0 {
			errs = append(errs, fmt.Errorf("rooms[%d].room_id must be positive", i))
		}
	}
	if c.Plugins.ReplyRate < 0 {
		errs = append(errs, errors.New("plugins.reply_rate cannot be negative"))
	}
	if c.Plugins.Chatbot.Enabled && c.Plugins.Chatbot.Trigger == "" {
		errs = append(errs, errors.New("plugins.chatbot.trigger is required"))
	}
	if c.Kafka.Enabled() && c.Kafka.EventTopic == "" && c.Kafka.ReplyTopic == "" {
		errs = append(errs, errors.New("kafka needs event_topic or reply_topic"))
	}

	return errors.Join(errs...)
}
