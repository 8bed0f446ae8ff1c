package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Conference/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
	assert.False(t, cfg.TLS.Enabled)
	assert.Equal(t, DefaultCodecs(), cfg.Media.Codecs)
	assert.Equal(t, uint16(40000), cfg.Media.Transport.PortMin)
	assert.True(t, cfg.Media.Transport.EnableUDP)
	assert.Equal(t, 5, cfg.JoinLimit.Limit)
	assert.Equal(t, 3, cfg.BackpressureStrikes)
	assert.Equal(t, "mediasoup-worker", cfg.Media.WorkerBin)
}

func TestLoadFile_EnvOverridesNestedKeys(t *testing.T) {
	t.Setenv("CONFERENCE_TLS_ENABLED", "true")
	t.Setenv("CONFERENCE_MEDIA_TRANSPORT_ANNOUNCED_IP", "198.51.100.4")
	t.Setenv("CONFERENCE_MEDIA_WORKER_BIN", "/opt/mediasoup/worker")
	t.Setenv("CONFERENCE_PORT", "9443")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "198.51.100.4", cfg.Media.Transport.AnnouncedIP)
	assert.Equal(t, "/opt/mediasoup/worker", cfg.Media.WorkerBin)
	assert.Equal(t, 9443, cfg.Port)
}

func TestLoadFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
mode: debug
port: 9000
ping_period: 20s
tls:
  enabled: true
  cert_file: cert.pem
  key_file: key.pem
media:
  codecs:
    - kind: audio
      mime_type: audio/opus
      clock_rate: 48000
      channels: 2
  transport:
    announced_ip: 203.0.113.7
    port_min: 50000
    port_max: 50010
telemetry:
  enabled: true
  exporter_url: localhost:4317
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 20*time.Second, cfg.PingPeriod)
	assert.Equal(t, TLSConfig{Enabled: true, CertFile: "cert.pem", KeyFile: "key.pem"}, cfg.TLS)
	require.Len(t, cfg.Media.Codecs, 1)
	assert.Equal(t, media.KindAudio, cfg.Media.Codecs[0].Kind)
	assert.Equal(t, uint32(48000), cfg.Media.Codecs[0].ClockRate)
	assert.Equal(t, "203.0.113.7", cfg.Media.Transport.AnnouncedIP)
	assert.Equal(t, uint16(50010), cfg.Media.Transport.PortMax)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "conference", cfg.Telemetry.ServiceName)
}
