package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                     string `json:"uri"`
	Database                string `json:"database"`
	MessagesCollection      string `json:"messagesCollection"`
	NotificationsCollection string `json:"notificationsCollection"`
	UsersCollection         string `json:"usersCollection"`
	EnrollmentsCollection   string `json:"enrollmentsCollection"`
	SocketRoute             string `json:"socketRoute"`
}

type ServerConfig struct {
	AppPort    int `json:"app_port"`
	SocketPort int `json:"socket_port"`
}

type ChatConfig struct {
	TypingTTLSeconds      int `json:"typing_ttl_seconds"`
	RetentionDays         int `json:"retention_days"`
	RetentionSweepMinutes int `json:"retention_sweep_minutes"`
}

type SMTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	From string `json:"from"`
}

type ProviderConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Sender   string `json:"sender"`
}

type NotifyConfig struct {
	SweepSeconds          int            `json:"sweep_seconds"`
	ChannelTimeoutSeconds int            `json:"channel_timeout_seconds"`
	SMTP                  SMTPConfig     `json:"smtp"`
	Push                  ProviderConfig `json:"push"`
	SMS                   ProviderConfig `json:"sms"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo"`
	Server       ServerConfig `json:"server"`
	Chat         ChatConfig   `json:"chat"`
	Notify       NotifyConfig `json:"notify"`
}

func LoadConfig(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.ChatDatabase.MessagesCollection == "" {
		c.ChatDatabase.MessagesCollection = "messages"
	}
	if c.ChatDatabase.NotificationsCollection == "" {
		c.ChatDatabase.NotificationsCollection = "notifications"
	}
	if c.ChatDatabase.UsersCollection == "" {
		c.ChatDatabase.UsersCollection = "users"
	}
	if c.ChatDatabase.EnrollmentsCollection == "" {
		c.ChatDatabase.EnrollmentsCollection = "enrollments"
	}
	if c.ChatDatabase.SocketRoute == "" {
		c.ChatDatabase.SocketRoute = "ws"
	}
	if c.Chat.TypingTTLSeconds <= 0 {
		c.Chat.TypingTTLSeconds = 3
	}
	if c.Chat.RetentionDays <= 0 {
		c.Chat.RetentionDays = 30
	}
	if c.Chat.RetentionSweepMinutes <= 0 {
		c.Chat.RetentionSweepMinutes = 60
	}
	if c.Notify.SweepSeconds <= 0 {
		c.Notify.SweepSeconds = 60
	}
	if c.Notify.ChannelTimeoutSeconds <= 0 {
		c.Notify.ChannelTimeoutSeconds = 10
	}
}
