package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type MediaConfig struct {
	// WorkerBin is the mediasoup-worker binary the engine spawns.
	WorkerBin string                     `mapstructure:"worker_bin"`
	Codecs    []media.RtpCodecCapability `mapstructure:"codecs"`
	Transport media.TransportOptions     `mapstructure:"transport"`
}

type TelemetryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	ExporterURL   string        `mapstructure:"exporter_url"`
	ServiceName   string        `mapstructure:"service_name"`
	Environment   string        `mapstructure:"environment"`
	SamplingRatio float64       `mapstructure:"sampling_ratio"`
	Interval      time.Duration `mapstructure:"interval"`
}

type JoinLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode       string          `mapstructure:"mode"`
	Port       int             `mapstructure:"port"`
	StaticPath string          `mapstructure:"static_path"`
	ReadLimit  int64           `mapstructure:"read_limit"`
	PingPeriod time.Duration   `mapstructure:"ping_period"`
	Secret     string          `mapstructure:"secret"`
	LogLevel   string          `mapstructure:"log_level"`
	TLS        TLSConfig       `mapstructure:"tls"`
	Media      MediaConfig     `mapstructure:"media"`
	Telemetry  TelemetryConfig `mapstructure:"telemetry"`
	JoinLimit  JoinLimitConfig `mapstructure:"join_limit"`
	// BackpressureStrikes is how many pushes a slow client may miss before
	// it is disconnected. 1 disconnects on the first miss.
	BackpressureStrikes int `mapstructure:"backpressure_strikes"`
}

// DefaultCodecs is the router codec list used when the config file has none.
func DefaultCodecs() []media.RtpCodecCapability {
	return []media.RtpCodecCapability{
		{Kind: media.KindAudio, MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{Kind: media.KindVideo, MimeType: "video/VP8", ClockRate: 90000},
		{
			Kind:      media.KindVideo,
			MimeType:  "video/H264",
			ClockRate: 90000,
			Parameters: map[string]any{
				"packetization-mode":      1,
				"profile-level-id":        "42e01f",
				"level-asymmetry-allowed": 1,
			},
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")

	v.SetDefault("tls.enabled", false)

	v.SetDefault("media.worker_bin", "mediasoup-worker")
	v.SetDefault("media.transport.listen_ip", "0.0.0.0")
	v.SetDefault("media.transport.announced_ip", "127.0.0.1")
	v.SetDefault("media.transport.port_min", 40000)
	v.SetDefault("media.transport.port_max", 49999)
	v.SetDefault("media.transport.enable_udp", true)
	v.SetDefault("media.transport.enable_tcp", true)
	v.SetDefault("media.transport.prefer_udp", true)
	v.SetDefault("media.transport.initial_outgoing_bitrate", 1000000)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "conference")
	v.SetDefault("telemetry.environment", "dev")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.interval", "10s")

	v.SetDefault("join_limit.limit", 5)
	v.SetDefault("join_limit.interval", "10s")
	v.SetDefault("backpressure_strikes", 3)
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("CONFERENCE")
	// tls.enabled is read from CONFERENCE_TLS_ENABLED.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Media.Codecs) == 0 {
		cfg.Media.Codecs = DefaultCodecs()
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Int("codecs", len(cfg.Media.Codecs)).Msg("config ready")
	return &cfg, nil
}
