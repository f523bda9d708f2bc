package main

import (
	"strings"
	"time"
)

type Config struct {
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	IngestQueueSize      int           `env:"INGEST_QUEUE_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	AdminIdentities      string        `env:"ADMIN_IDENTITIES,required=true"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=30s"`
	ModerationChar       string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

// CharacterRune returns the first rune of the configured replacement string.
func (c Config) CharacterRune() rune {
	for _, r := range c.ModerationChar {
		return r
	}
	return '*'
}

// SplitIdentities parses the comma separated admin list.
func (c Config) SplitIdentities() []string {
	return strings.Split(c.AdminIdentities, ",")
}
