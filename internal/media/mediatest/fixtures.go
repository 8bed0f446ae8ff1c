package mediatest

import "github.com/dkeye/Conference/internal/media"

func Codecs() []media.RtpCodecCapability {
	return []media.RtpCodecCapability{
		{Kind: media.KindAudio, MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{Kind: media.KindVideo, MimeType: "video/VP8", ClockRate: 90000},
	}
}

func TransportOptions() media.TransportOptions {
	return media.TransportOptions{
		ListenIP:    "0.0.0.0",
		AnnouncedIP: "127.0.0.1",
		PortMin:     40000,
		PortMax:     40099,
		EnableUDP:   true,
	}
}

// ClientCapabilities is what a browser that decodes every router codec
// announces.
func ClientCapabilities() media.RtpCapabilities {
	return media.RtpCapabilities{Codecs: Codecs()}
}

// AudioOnlyCapabilities cannot decode any video codec.
func AudioOnlyCapabilities() media.RtpCapabilities {
	return media.RtpCapabilities{Codecs: Codecs()[:1]}
}

func Params(kind media.Kind) media.RtpParameters {
	if kind == media.KindAudio {
		return media.RtpParameters{
			Mid:       "0",
			Codecs:    []media.RtpCodecParameters{{MimeType: "audio/opus", PayloadType: 111, ClockRate: 48000, Channels: 2}},
			Encodings: []media.RtpEncodingParameters{{Ssrc: 1111}},
			Rtcp:      &media.RtcpParameters{Cname: "client", ReducedSize: true},
		}
	}
	return media.RtpParameters{
		Mid:       "1",
		Codecs:    []media.RtpCodecParameters{{MimeType: "video/VP8", PayloadType: 96, ClockRate: 90000}},
		Encodings: []media.RtpEncodingParameters{{Ssrc: 2222}},
		Rtcp:      &media.RtcpParameters{Cname: "client", ReducedSize: true},
	}
}

func Dtls() media.DtlsParameters {
	return media.DtlsParameters{
		Role:         "client",
		Fingerprints: []media.DtlsFingerprint{{Algorithm: "sha-256", Value: "AB:CD:EF"}},
	}
}
