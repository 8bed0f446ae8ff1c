package media

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// ParseKind accepts the two media kinds a participant may produce.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindAudio:
		return KindAudio, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

type RtcpFeedback struct {
	Type      string `json:"type" mapstructure:"type"`
	Parameter string `json:"parameter,omitempty" mapstructure:"parameter"`
}

// RtpCodecCapability describes one codec a router or a client can handle.
type RtpCodecCapability struct {
	Kind                 Kind           `json:"kind" mapstructure:"kind"`
	MimeType             string         `json:"mimeType" mapstructure:"mime_type"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty" mapstructure:"preferred_payload_type"`
	ClockRate            uint32         `json:"clockRate" mapstructure:"clock_rate"`
	Channels             uint16         `json:"channels,omitempty" mapstructure:"channels"`
	Parameters           map[string]any `json:"parameters,omitempty" mapstructure:"parameters"`
	RtcpFeedback         []RtcpFeedback `json:"rtcpFeedback,omitempty" mapstructure:"rtcp_feedback"`
}

type RtpHeaderExtension struct {
	Kind        Kind   `json:"kind"`
	URI         string `json:"uri"`
	PreferredID int    `json:"preferredId"`
	Direction   string `json:"direction,omitempty"`
}

type RtpCapabilities struct {
	Codecs           []RtpCodecCapability `json:"codecs"`
	HeaderExtensions []RtpHeaderExtension `json:"headerExtensions"`
}

type RtpCodecParameters struct {
	MimeType     string         `json:"mimeType"`
	PayloadType  uint8          `json:"payloadType"`
	ClockRate    uint32         `json:"clockRate"`
	Channels     uint16         `json:"channels,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RtcpFeedback []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

type RtpEncodingParameters struct {
	Ssrc uint32 `json:"ssrc,omitempty"`
	Rid  string `json:"rid,omitempty"`
}

type RtcpParameters struct {
	Cname       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize"`
}

type RtpParameters struct {
	Mid       string                  `json:"mid,omitempty"`
	Codecs    []RtpCodecParameters    `json:"codecs"`
	Encodings []RtpEncodingParameters `json:"encodings,omitempty"`
	Rtcp      *RtcpParameters         `json:"rtcp,omitempty"`
}

type IceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	IceLite          bool   `json:"iceLite"`
}

type IceCandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
}

type DtlsFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DtlsParameters struct {
	Role         string            `json:"role,omitempty"`
	Fingerprints []DtlsFingerprint `json:"fingerprints"`
}

// TransportOptions configures every WebRTC transport a room creates.
type TransportOptions struct {
	ListenIP                        string `mapstructure:"listen_ip"`
	AnnouncedIP                     string `mapstructure:"announced_ip"`
	PortMin                         uint16 `mapstructure:"port_min"`
	PortMax                         uint16 `mapstructure:"port_max"`
	EnableUDP                       bool   `mapstructure:"enable_udp"`
	EnableTCP                       bool   `mapstructure:"enable_tcp"`
	PreferUDP                       bool   `mapstructure:"prefer_udp"`
	InitialAvailableOutgoingBitrate uint32 `mapstructure:"initial_outgoing_bitrate"`
}

type ProduceOptions struct {
	Kind          Kind
	RtpParameters RtpParameters
	AppData       map[string]any
}

type ConsumeOptions struct {
	ProducerID      string
	RtpCapabilities RtpCapabilities
	Paused          bool
}
