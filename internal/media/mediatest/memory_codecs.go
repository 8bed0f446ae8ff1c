package mediatest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dkeye/Conference/internal/media"
	"github.com/pion/webrtc/v4"
)

const (
	firstDynamicPayloadType = 100
	lastDynamicPayloadType  = 127
)

var supportedMimeTypes = map[string]media.Kind{
	strings.ToLower(webrtc.MimeTypeOpus): media.KindAudio,
	strings.ToLower(webrtc.MimeTypePCMU): media.KindAudio,
	strings.ToLower(webrtc.MimeTypePCMA): media.KindAudio,
	strings.ToLower(webrtc.MimeTypeG722): media.KindAudio,
	strings.ToLower(webrtc.MimeTypeVP8):  media.KindVideo,
	strings.ToLower(webrtc.MimeTypeVP9):  media.KindVideo,
	strings.ToLower(webrtc.MimeTypeH264): media.KindVideo,
	strings.ToLower(webrtc.MimeTypeAV1):  media.KindVideo,
}

var videoFeedback = []media.RtcpFeedback{
	{Type: webrtc.TypeRTCPFBNACK},
	{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
	{Type: webrtc.TypeRTCPFBCCM, Parameter: "fir"},
	{Type: webrtc.TypeRTCPFBGoogREMB},
	{Type: webrtc.TypeRTCPFBTransportCC},
}

var audioFeedback = []media.RtcpFeedback{
	{Type: webrtc.TypeRTCPFBTransportCC},
}

var headerExtensions = []media.RtpHeaderExtension{
	{Kind: media.KindAudio, URI: "urn:ietf:params:rtp-hdrext:sdes:mid", PreferredID: 1, Direction: "sendrecv"},
	{Kind: media.KindVideo, URI: "urn:ietf:params:rtp-hdrext:sdes:mid", PreferredID: 1, Direction: "sendrecv"},
	{Kind: media.KindAudio, URI: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", PreferredID: 4, Direction: "sendrecv"},
	{Kind: media.KindVideo, URI: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", PreferredID: 4, Direction: "sendrecv"},
	{Kind: media.KindAudio, URI: "urn:ietf:params:rtp-hdrext:ssrc-audio-level", PreferredID: 10, Direction: "sendrecv"},
}

func mimeKind(mimeType string) (media.Kind, bool) {
	k, ok := supportedMimeTypes[strings.ToLower(mimeType)]
	return k, ok
}

// routerCapabilities validates the configured codec list and assigns
// payload types and default RTCP feedback the way a router advertises them.
func routerCapabilities(codecs []media.RtpCodecCapability) (media.RtpCapabilities, error) {
	if len(codecs) == 0 {
		return media.RtpCapabilities{}, fmt.Errorf("%w: empty codec list", media.ErrEngine)
	}
	used := make(map[uint8]bool, len(codecs))
	for _, c := range codecs {
		if c.PreferredPayloadType != 0 {
			used[c.PreferredPayloadType] = true
		}
	}
	next := firstDynamicPayloadType
	out := make([]media.RtpCodecCapability, 0, len(codecs))
	for _, c := range codecs {
		kind, ok := mimeKind(c.MimeType)
		if !ok {
			return media.RtpCapabilities{}, fmt.Errorf("%w: unsupported codec %s", media.ErrEngine, c.MimeType)
		}
		if c.Kind != "" && c.Kind != kind {
			return media.RtpCapabilities{}, fmt.Errorf("%w: codec %s is not %s", media.ErrEngine, c.MimeType, c.Kind)
		}
		if c.ClockRate == 0 {
			return media.RtpCapabilities{}, fmt.Errorf("%w: codec %s without clock rate", media.ErrEngine, c.MimeType)
		}
		c.Kind = kind
		if c.PreferredPayloadType == 0 {
			for next <= lastDynamicPayloadType && used[uint8(next)] {
				next++
			}
			if next > lastDynamicPayloadType {
				return media.RtpCapabilities{}, fmt.Errorf("%w: no dynamic payload type left for %s", media.ErrEngine, c.MimeType)
			}
			c.PreferredPayloadType = uint8(next)
			used[uint8(next)] = true
		}
		if len(c.RtcpFeedback) == 0 {
			if kind == media.KindVideo {
				c.RtcpFeedback = append([]media.RtcpFeedback(nil), videoFeedback...)
			} else {
				c.RtcpFeedback = append([]media.RtcpFeedback(nil), audioFeedback...)
			}
		}
		if kind == media.KindAudio && c.Channels == 0 {
			c.Channels = 1
		}
		out = append(out, c)
	}
	return media.RtpCapabilities{
		Codecs:           out,
		HeaderExtensions: append([]media.RtpHeaderExtension(nil), headerExtensions...),
	}, nil
}

// codecMatches compares the fields that must agree for a stream encoded by
// one side to be decodable by the other.
func codecMatches(mimeType string, clockRate uint32, channels uint16, params map[string]any, c media.RtpCodecCapability) bool {
	if !strings.EqualFold(mimeType, c.MimeType) || clockRate != c.ClockRate {
		return false
	}
	if kind, _ := mimeKind(mimeType); kind == media.KindAudio && normChannels(channels) != normChannels(c.Channels) {
		return false
	}
	if strings.EqualFold(mimeType, webrtc.MimeTypeH264) {
		if intParam(params, "packetization-mode") != intParam(c.Parameters, "packetization-mode") {
			return false
		}
	}
	return true
}

func normChannels(ch uint16) uint16 {
	if ch == 0 {
		return 1
	}
	return ch
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func findCapability(codec media.RtpCodecParameters, caps media.RtpCapabilities) (media.RtpCodecCapability, bool) {
	for _, c := range caps.Codecs {
		if codecMatches(codec.MimeType, codec.ClockRate, codec.Channels, codec.Parameters, c) {
			return c, true
		}
	}
	return media.RtpCodecCapability{}, false
}
