// Package logging provides the service's structured log channels.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Channel is a logical log stream for one part of the service.
type Channel string

const (
	ChannelSystem    Channel = "system"
	ChannelStartup   Channel = "startup"
	ChannelRoom      Channel = "room"
	ChannelLiveness  Channel = "liveness"
	ChannelAuth      Channel = "auth"
	ChannelTransport Channel = "transport"
	ChannelHTTP      Channel = "http"
	ChannelAudit     Channel = "audit"
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelRoom, ChannelLiveness,
	ChannelAuth, ChannelTransport, ChannelHTTP, ChannelAudit,
}

// Config selects the output format and levels.
type Config struct {
	Level         slog.Level
	JSON          bool
	Output        io.Writer
	ChannelLevels map[Channel]slog.Level
}

// Logger hands out one slog.Logger per channel.
type Logger struct {
	channels map[Channel]*slog.Logger
}

// New builds a Logger writing to cfg.Output (stdout when nil).
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := &Logger{channels: make(map[Channel]*slog.Logger, len(allChannels))}
	for _, ch := range allChannels {
		level := cfg.Level
		if override, ok := cfg.ChannelLevels[ch]; ok {
			level = override
		}
		opts := &slog.HandlerOptions{Level: level}
		var h slog.Handler
		if cfg.JSON {
			h = slog.NewJSONHandler(out, opts)
		} else {
			h = slog.NewTextHandler(out, opts)
		}
		l.channels[ch] = slog.New(h).With("channel", string(ch))
	}
	return l
}

// Discard returns a Logger that drops everything. Tests use it.
func Discard() *Logger {
	return New(Config{Output: io.Discard, Level: slog.LevelError + 4})
}

// ParseLevel maps LOG_LEVEL values onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l *Logger) Channel(ch Channel) *slog.Logger {
	if lg, ok := l.channels[ch]; ok {
		return lg
	}
	return l.channels[ChannelSystem]
}

func (l *Logger) System() *slog.Logger    { return l.Channel(ChannelSystem) }
func (l *Logger) Startup() *slog.Logger   { return l.Channel(ChannelStartup) }
func (l *Logger) Room() *slog.Logger      { return l.Channel(ChannelRoom) }
func (l *Logger) Liveness() *slog.Logger  { return l.Channel(ChannelLiveness) }
func (l *Logger) Auth() *slog.Logger      { return l.Channel(ChannelAuth) }
func (l *Logger) Transport() *slog.Logger { return l.Channel(ChannelTransport) }
func (l *Logger) HTTP() *slog.Logger      { return l.Channel(ChannelHTTP) }
func (l *Logger) Audit() *slog.Logger     { return l.Channel(ChannelAudit) }
