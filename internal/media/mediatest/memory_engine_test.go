package mediatest

import (
	"context"
	"testing"

	"github.com/dkeye/Conference/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) media.Router {
	t.Helper()
	ctx := context.Background()
	w, err := NewMemoryEngine().CreateWorker(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	r, err := w.CreateRouter(ctx, Codecs())
	require.NoError(t, err)
	return r
}

func newTransport(t *testing.T, r media.Router) media.Transport {
	t.Helper()
	tr, err := r.CreateWebRtcTransport(context.Background(), TransportOptions())
	require.NoError(t, err)
	return tr
}

func TestRouterCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		codecs  []media.RtpCodecCapability
		wantErr bool
	}{
		{name: "defaults", codecs: Codecs()},
		{name: "empty", wantErr: true},
		{name: "unknown codec", codecs: []media.RtpCodecCapability{{MimeType: "audio/x-foo", ClockRate: 8000}}, wantErr: true},
		{name: "wrong kind", codecs: []media.RtpCodecCapability{{Kind: media.KindAudio, MimeType: "video/VP8", ClockRate: 90000}}, wantErr: true},
		{name: "no clock rate", codecs: []media.RtpCodecCapability{{MimeType: "audio/opus"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := routerCapabilities(tt.codecs)
			if tt.wantErr {
				assert.ErrorIs(t, err, media.ErrEngine)
				return
			}
			require.NoError(t, err)
			require.Len(t, caps.Codecs, len(tt.codecs))
			seen := map[uint8]bool{}
			for _, c := range caps.Codecs {
				assert.GreaterOrEqual(t, c.PreferredPayloadType, uint8(firstDynamicPayloadType))
				assert.False(t, seen[c.PreferredPayloadType], "payload types are unique")
				seen[c.PreferredPayloadType] = true
				assert.NotEmpty(t, c.RtcpFeedback)
			}
			assert.NotEmpty(t, caps.HeaderExtensions)
		})
	}
}

func TestRouterCapabilities_PayloadTypesExhausted(t *testing.T) {
	slots := lastDynamicPayloadType - firstDynamicPayloadType + 1
	codecs := make([]media.RtpCodecCapability, slots)
	for i := range codecs {
		codecs[i] = media.RtpCodecCapability{MimeType: "audio/opus", ClockRate: 48000, Channels: 2}
	}
	caps, err := routerCapabilities(codecs)
	require.NoError(t, err)
	assert.Equal(t, uint8(lastDynamicPayloadType), caps.Codecs[slots-1].PreferredPayloadType)

	codecs = append(codecs, media.RtpCodecCapability{MimeType: "video/VP8", ClockRate: 90000})
	_, err = routerCapabilities(codecs)
	assert.ErrorIs(t, err, media.ErrEngine)
}

func TestTransport_Parameters(t *testing.T) {
	r := newRouter(t)
	a, b := newTransport(t, r), newTransport(t, r)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.IceParameters().UsernameFragment, iceUfragLen)
	assert.Len(t, a.IceParameters().Password, icePwdLen)
	assert.NotEqual(t, a.IceParameters().Password, b.IceParameters().Password)
	require.NotEmpty(t, a.DtlsParameters().Fingerprints)
	assert.Equal(t, "sha-256", a.DtlsParameters().Fingerprints[0].Algorithm)

	cands := a.IceCandidates()
	require.Len(t, cands, 1)
	assert.Equal(t, "127.0.0.1", cands[0].IP)
	assert.Equal(t, "udp", cands[0].Protocol)
	assert.NotEqual(t, cands[0].Port, b.IceCandidates()[0].Port)
}

func TestTransport_Connect(t *testing.T) {
	ctx := context.Background()
	tr := newTransport(t, newRouter(t))

	assert.ErrorIs(t, tr.Connect(ctx, media.DtlsParameters{}), media.ErrEngine)
	bad := Dtls()
	bad.Role = "both"
	assert.ErrorIs(t, tr.Connect(ctx, bad), media.ErrEngine)

	require.NoError(t, tr.Connect(ctx, Dtls()))
	assert.ErrorIs(t, tr.Connect(ctx, Dtls()), media.ErrEngine)
}

func TestProduceConsume(t *testing.T) {
	ctx := context.Background()
	r := newRouter(t)
	send, recv := newTransport(t, r), newTransport(t, r)

	_, err := send.Produce(ctx, media.ProduceOptions{Kind: media.KindVideo, RtpParameters: Params(media.KindAudio)})
	require.ErrorIs(t, err, media.ErrEngine, "opus cannot carry video")

	prod, err := send.Produce(ctx, media.ProduceOptions{Kind: media.KindAudio, RtpParameters: Params(media.KindAudio)})
	require.NoError(t, err)
	assert.Equal(t, media.KindAudio, prod.Kind())

	caps := r.RtpCapabilities()
	assert.True(t, r.CanConsume(prod.ID(), caps))
	assert.False(t, r.CanConsume("missing", caps))
	assert.False(t, r.CanConsume(prod.ID(), media.RtpCapabilities{Codecs: Codecs()[1:]}))

	c1, err := recv.Consume(ctx, media.ConsumeOptions{ProducerID: prod.ID(), RtpCapabilities: caps, Paused: true})
	require.NoError(t, err)
	c2, err := recv.Consume(ctx, media.ConsumeOptions{ProducerID: prod.ID(), RtpCapabilities: caps, Paused: true})
	require.NoError(t, err)

	assert.Equal(t, prod.ID(), c1.ProducerID())
	assert.True(t, c1.Paused())
	assert.NotEqual(t, c1.RtpParameters().Mid, c2.RtpParameters().Mid)
	assert.Equal(t, caps.Codecs[0].PreferredPayloadType, c1.RtpParameters().Codecs[0].PayloadType)
	assert.Equal(t, "client", c1.RtpParameters().Rtcp.Cname)

	require.NoError(t, c1.Resume(ctx))
	assert.False(t, c1.Paused())

	_, err = recv.Consume(ctx, media.ConsumeOptions{ProducerID: "missing", RtpCapabilities: caps})
	assert.ErrorIs(t, err, media.ErrEngine)
}

func TestClose_Cascades(t *testing.T) {
	ctx := context.Background()
	r := newRouter(t)
	send, recv := newTransport(t, r), newTransport(t, r)
	prod, err := send.Produce(ctx, media.ProduceOptions{Kind: media.KindVideo, RtpParameters: Params(media.KindVideo)})
	require.NoError(t, err)
	c, err := recv.Consume(ctx, media.ConsumeOptions{ProducerID: prod.ID(), RtpCapabilities: r.RtpCapabilities()})
	require.NoError(t, err)

	require.NoError(t, prod.Close())
	assert.True(t, c.Closed(), "closing a producer closes its consumers")
	assert.ErrorIs(t, c.Resume(ctx), media.ErrClosed)
	assert.False(t, r.CanConsume(prod.ID(), r.RtpCapabilities()))

	prod2, err := send.Produce(ctx, media.ProduceOptions{Kind: media.KindVideo, RtpParameters: Params(media.KindVideo)})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.True(t, r.Closed())
	assert.True(t, send.Closed())
	assert.True(t, recv.Closed())
	assert.True(t, prod2.Closed())
	require.NoError(t, r.Close())

	_, err = r.CreateWebRtcTransport(ctx, TransportOptions())
	assert.ErrorIs(t, err, media.ErrClosed)
}
