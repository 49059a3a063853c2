// Package config loads Gibson's server configuration from command-line
// flags and environment variables, with fallback defaults, per §6's
// recognized-keys table.
//
// Configuration sources, in order of precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables, prefixed GIBSON_
//  3. Default values (lowest priority)
//
// Grounded on cachemir/pkg/config.LoadServerConfig, ported field-for-
// field for the keys §6 recognizes and renamed from the CACHEMIR_ env
// prefix to GIBSON_.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Defaults mirror the typical values named in §4.7 and §6.
const (
	DefaultAddress         = "0.0.0.0"
	DefaultPort            = 6464
	DefaultMaxIdletime     = 60
	DefaultMaxClients      = 10000
	DefaultMaxRequestSize  = 1 << 20  // 1 MiB
	DefaultMaxResponseSize = 4 << 20  // 4 MiB
	DefaultMaxKeySize      = 1 << 10  // 1 KiB
	DefaultMaxValueSize    = 16 << 20 // 16 MiB
	DefaultMaxMemory       = 512 << 20
	DefaultMaxItemTTL      = 30 * 24 * 3600 // 30 days
	DefaultCompression     = 1 << 10        // attempt LZF at 1 KiB and up
	DefaultCronPeriodMS    = 100
	DefaultGCRatio         = 300 // seconds of idleness before pressure-eviction eligible
	DefaultLogLevel        = "info"
)

// ServerConfig holds every setting §6 names. UnixSocket takes precedence
// over Address/Port when set, per §6's transport rule. Daemonize,
// PIDFile, LogFile, LogLevel, and LogFlushRate are process-lifecycle
// concerns Gibson accepts but is inert on (Validate checks only LogLevel
// among them): there is no structured logger in this tree (every call site uses plain
// log.Printf), so LogLevel is parsed and range-checked but never
// consulted (see DESIGN.md for why the rest are accepted-but-inert too).
type ServerConfig struct {
	UnixSocket string
	Address    string
	Port       int

	MaxIdletime     int
	MaxClients      int
	MaxRequestSize  int
	MaxResponseSize int
	MaxKeySize      int
	MaxValueSize    int
	MaxMemory       int64
	MaxItemTTL      int64
	Compression     int
	CronPeriodMS    int
	GCRatio         int64

	Daemonize    bool
	PIDFile      string
	LogFile      string
	LogLevel     string
	LogFlushRate int
}

// Load builds a ServerConfig from flags and GIBSON_-prefixed environment
// variables, flags taking precedence. It calls flag.Parse(), so it must
// be called at most once, from main.
func Load() *ServerConfig {
	c := &ServerConfig{
		Address:         DefaultAddress,
		Port:            DefaultPort,
		MaxIdletime:     DefaultMaxIdletime,
		MaxClients:      DefaultMaxClients,
		MaxRequestSize:  DefaultMaxRequestSize,
		MaxResponseSize: DefaultMaxResponseSize,
		MaxKeySize:      DefaultMaxKeySize,
		MaxValueSize:    DefaultMaxValueSize,
		MaxMemory:       DefaultMaxMemory,
		MaxItemTTL:      DefaultMaxItemTTL,
		Compression:     DefaultCompression,
		CronPeriodMS:    DefaultCronPeriodMS,
		GCRatio:         DefaultGCRatio,
		LogLevel:        DefaultLogLevel,
	}

	// Environment values become the flag defaults, so an explicit flag
	// still overrides them.
	c.applyEnv()

	flag.StringVar(&c.UnixSocket, "unix-socket", c.UnixSocket, "Unix domain socket path (overrides TCP address/port)")
	flag.StringVar(&c.Address, "address", c.Address, "TCP listen address")
	flag.IntVar(&c.Port, "port", c.Port, "TCP listen port")
	flag.IntVar(&c.MaxIdletime, "max-idletime", c.MaxIdletime, "Client idle timeout in seconds")
	flag.IntVar(&c.MaxClients, "max-clients", c.MaxClients, "Maximum concurrent client connections")
	flag.IntVar(&c.MaxRequestSize, "max-request-size", c.MaxRequestSize, "Maximum request frame size in bytes")
	flag.IntVar(&c.MaxResponseSize, "max-response-size", c.MaxResponseSize, "Maximum reply frame size in bytes")
	flag.IntVar(&c.MaxKeySize, "max-key-size", c.MaxKeySize, "Maximum key size in bytes")
	flag.IntVar(&c.MaxValueSize, "max-value-size", c.MaxValueSize, "Maximum value size in bytes")
	flag.Int64Var(&c.MaxMemory, "max-memory", c.MaxMemory, "Memory budget in bytes before pressure eviction")
	flag.Int64Var(&c.MaxItemTTL, "max-item-ttl", c.MaxItemTTL, "Upper bound on any item's TTL in seconds")
	flag.IntVar(&c.Compression, "compression", c.Compression, "Minimum payload size in bytes for an LZF attempt")
	flag.IntVar(&c.CronPeriodMS, "cron-period", c.CronPeriodMS, "Cron tick period in milliseconds")
	flag.Int64Var(&c.GCRatio, "gc-ratio", c.GCRatio, "Idle age in seconds eligible for pressure eviction")
	flag.BoolVar(&c.Daemonize, "daemonize", c.Daemonize, "Accepted for config-file compatibility; Gibson never forks")
	flag.StringVar(&c.PIDFile, "pidfile", c.PIDFile, "Accepted for config-file compatibility; unused")
	flag.StringVar(&c.LogFile, "logfile", c.LogFile, "Accepted for config-file compatibility; unused")
	flag.StringVar(&c.LogLevel, "loglevel", c.LogLevel, "Log level: debug, info, warn, error")
	flag.IntVar(&c.LogFlushRate, "logflushrate", c.LogFlushRate, "Accepted for config-file compatibility; unused")
	flag.Parse()

	return c
}

func envString(key string, dst *string) {
	if v := os.Getenv("GIBSON_" + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv("GIBSON_" + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv("GIBSON_" + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv("GIBSON_" + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (c *ServerConfig) applyEnv() {
	envString("UNIX_SOCKET", &c.UnixSocket)
	envString("ADDRESS", &c.Address)
	envInt("PORT", &c.Port)
	envInt("MAX_IDLETIME", &c.MaxIdletime)
	envInt("MAX_CLIENTS", &c.MaxClients)
	envInt("MAX_REQUEST_SIZE", &c.MaxRequestSize)
	envInt("MAX_RESPONSE_SIZE", &c.MaxResponseSize)
	envInt("MAX_KEY_SIZE", &c.MaxKeySize)
	envInt("MAX_VALUE_SIZE", &c.MaxValueSize)
	envInt64("MAX_MEMORY", &c.MaxMemory)
	envInt64("MAX_ITEM_TTL", &c.MaxItemTTL)
	envInt("COMPRESSION", &c.Compression)
	envInt("CRON_PERIOD", &c.CronPeriodMS)
	envInt64("GC_RATIO", &c.GCRatio)
	envBool("DAEMONIZE", &c.Daemonize)
	envString("PIDFILE", &c.PIDFile)
	envString("LOGFILE", &c.LogFile)
	envString("LOGLEVEL", &c.LogLevel)
	envInt("LOGFLUSHRATE", &c.LogFlushRate)
}

// Addr returns the "host:port" string to pass to net.Listen("tcp", ...)
// when UnixSocket is not set.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// Validate checks that every configured limit is in a usable range.
func (c *ServerConfig) Validate() error {
	if c.UnixSocket == "" {
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("config: invalid port: %d", c.Port)
		}
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("config: max-clients must be positive: %d", c.MaxClients)
	}
	if c.MaxRequestSize < 6 {
		return fmt.Errorf("config: max-request-size too small to hold a header: %d", c.MaxRequestSize)
	}
	if c.MaxKeySize < 1 {
		return fmt.Errorf("config: max-key-size must be positive: %d", c.MaxKeySize)
	}
	if c.MaxValueSize < 0 {
		return fmt.Errorf("config: max-value-size must not be negative: %d", c.MaxValueSize)
	}
	if c.CronPeriodMS < 1 {
		return fmt.Errorf("config: cron-period must be positive: %d", c.CronPeriodMS)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("config: invalid log level: %s", c.LogLevel)
	}
	return nil
}
