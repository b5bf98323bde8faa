// Package config reads every BUZZER_* environment variable the daemon
// needs into one struct, applying sensible defaults, and bails out at
// startup (not mid-run) if anything required is malformed.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("main.config")

// Config holds every tunable the daemon reads once at startup.
type Config struct {
	NumBuzzers     int
	BuzzerPins     []string // gpioreg names, index-aligned with buzzer index
	StopPin        string
	Port           int
	LoopPauseMs    int
	SettleMs       int
	WifiCheckMs    int
	MaxNotes       int
	MaxTracks      int
	DefaultVolume  int
	SampleRateHz   int
	ModelPath      string
	CatalogDir     string
	WebDir         string
	WifiConn       string
	StatePath      string

	TelegramToken     string
	TelegramChannelID int64
}

// Get reads the process environment into a Config, logging and exiting
// on any required value that is missing or malformed — the same
// fail-fast-at-startup shape the original daemon used for its own
// required env vars.
func Get() *Config {
	cfg := &Config{
		NumBuzzers:    envInt("BUZZER_NUM", 4),
		StopPin:       envString("BUZZER_STOP_PIN", "GPIO15"),
		Port:          envInt("BUZZER_PORT", 80),
		LoopPauseMs:   envInt("BUZZER_LOOP_PAUSE_MS", 400),
		SettleMs:      envInt("BUZZER_SETTLE_MS", 200),
		WifiCheckMs:   envInt("BUZZER_WIFI_CHECK_MS", 10000),
		MaxNotes:      envInt("BUZZER_MAX_NOTES", 256),
		MaxTracks:     envInt("BUZZER_MAX_TRACKS", 4),
		DefaultVolume: envInt("BUZZER_DEFAULT_VOLUME", 70),
		SampleRateHz:  envInt("BUZZER_SAMPLE_RATE", 40000),
		ModelPath:     envString("BUZZER_MODEL_PATH", ""),
		CatalogDir:    envString("BUZZER_CATALOG_DIR", "./songs"),
		WebDir:        envString("BUZZER_WEB_DIR", "./web"),
		WifiConn:      envString("BUZZER_WIFI_CONN", "buzzer"),
		StatePath:     envString("STATE_PATH", "/var/lib/buzzerd"),

		TelegramToken: os.Getenv("BUZZER_TELEGRAM_TOKEN"),
	}

	cfg.BuzzerPins = make([]string, cfg.NumBuzzers)
	for i := range cfg.BuzzerPins {
		name := "BUZZER_PIN_" + strconv.Itoa(i)
		cfg.BuzzerPins[i] = envString(name, "GPIO"+strconv.Itoa(4+i))
	}

	if cfg.TelegramToken != "" {
		cid := os.Getenv("BUZZER_TELEGRAM_CHANNEL_ID")
		if cid == "" {
			logger.Criticalf("BUZZER_TELEGRAM_TOKEN set but BUZZER_TELEGRAM_CHANNEL_ID is empty")
			os.Exit(1)
		}
		id, err := strconv.ParseInt(cid, 10, 64)
		if err != nil {
			logger.Criticalf("failed parsing BUZZER_TELEGRAM_CHANNEL_ID: %v", err)
			os.Exit(1)
		}
		cfg.TelegramChannelID = id
	}

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Criticalf("failed parsing %s=%q as int, using default %d", key, v, def)
		return def
	}
	return n
}
