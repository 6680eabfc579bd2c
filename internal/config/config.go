// Package config loads the broker's runtime configuration from
// environment variables, following the teacher's GetAllowedOriginsFromEnv
// pattern: read a named variable, fall back to a sensible development
// default and log a warning when it is unset.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/streambridge/streambridge/internal/model"
	"github.com/streambridge/streambridge/internal/transport"
)

// Config is every environment-derived setting the broker needs to start.
type Config struct {
	BindAddress    string
	URLPathPrefix  string
	AllowedOrigins []string

	Auth0Domain   string
	Auth0Audience string
	SkipAuth      bool

	ICEServers         []transport.ICEServer
	NegotiationTimeout time.Duration

	StreamerBinary string
	DefaultStream  DefaultStreamSettings
}

// DefaultStreamSettings holds the configured default stream settings.
// Only VideoCodec is used, as the broker's default room codec; the
// other fields are not copied into the ipc.SessionParams sent to the
// streamer.
type DefaultStreamSettings struct {
	Bitrate              int
	PacketSize           int
	FPS                  int
	Width                int
	Height               int
	VideoCodec           model.VideoCodec
	VideoFrameQueueSize  int
	AudioSampleQueueSize int
}

// Load reads Config from the process environment. Every variable with a
// development fallback uses it when unset. String settings and the
// allowed origins log a warning when they fall back; integer settings
// fall back silently when unset and warn only when the value does not
// parse; the ICE server list falls back silently.
func Load() Config {
	return Config{
		BindAddress:    getEnv("BIND_ADDRESS", ":8080"),
		URLPathPrefix:  getEnv("URL_PATH_PREFIX", "/ws"),
		AllowedOrigins: getAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		Auth0Domain:   os.Getenv("AUTH0_DOMAIN"),
		Auth0Audience: os.Getenv("AUTH0_AUDIENCE"),
		SkipAuth:      os.Getenv("SKIP_AUTH") == "true",

		ICEServers:         getICEServersFromEnv("WEBRTC_ICE_SERVERS"),
		NegotiationTimeout: getDurationSeconds("WEBRTC_NEGOTIATION_TIMEOUT_SECONDS", transport.DefaultNegotiationTimeoutSeconds),

		StreamerBinary: getEnv("STREAMER_BINARY", "streambridge-streamer"),
		DefaultStream: DefaultStreamSettings{
			Bitrate:              getEnvInt("DEFAULT_BITRATE", 20_000_000),
			PacketSize:           getEnvInt("DEFAULT_PACKET_SIZE", 1024),
			FPS:                  getEnvInt("DEFAULT_FPS", 60),
			Width:                getEnvInt("DEFAULT_WIDTH", 1920),
			Height:               getEnvInt("DEFAULT_HEIGHT", 1080),
			VideoCodec:           model.VideoCodec(getEnv("DEFAULT_VIDEO_CODEC", string(model.CodecH264High8_444))),
			VideoFrameQueueSize:  getEnvInt("DEFAULT_VIDEO_FRAME_QUEUE_SIZE", 3),
			AudioSampleQueueSize: getEnvInt("DEFAULT_AUDIO_SAMPLE_QUEUE_SIZE", 20),
		},
	}
}

func getEnv(envVarName, fallback string) string {
	v := os.Getenv(envVarName)
	if v == "" {
		slog.Warn(fmt.Sprintf("%s not set, using default", envVarName), "default", fallback)
		return fallback
	}
	return v
}

func getEnvInt(envVarName string, fallback int) int {
	v := os.Getenv(envVarName)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s is not a valid integer, using default", envVarName), "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getDurationSeconds(envVarName string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(envVarName, fallbackSeconds)) * time.Second
}

// getAllowedOriginsFromEnv mirrors the teacher's GetAllowedOriginsFromEnv:
// comma-separated list of origins, with a warned default for local dev.
func getAllowedOriginsFromEnv(envVarName string, defaultOrigins []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		slog.Warn(fmt.Sprintf("%s not set, using default development origins", envVarName), "default", defaultOrigins)
		return defaultOrigins
	}
	return strings.Split(originsStr, ",")
}

// getICEServersFromEnv parses WEBRTC_ICE_SERVERS as a semicolon-separated
// list of urls, optionally with "|username|credential" TURN auth, e.g.:
//
//	WEBRTC_ICE_SERVERS="stun:stun.l.google.com:19302;turn:turn.example.com:3478|user|pass"
func getICEServersFromEnv(envVarName string) []transport.ICEServer {
	raw := os.Getenv(envVarName)
	if raw == "" {
		return []transport.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}

	var servers []transport.ICEServer
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		s := transport.ICEServer{URLs: []string{parts[0]}}
		if len(parts) >= 3 {
			s.Username = parts[1]
			s.Credential = parts[2]
		}
		servers = append(servers, s)
	}
	return servers
}
