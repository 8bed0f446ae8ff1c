package mediasoup

import (
	"encoding/json"

	"github.com/dkeye/Conference/internal/media"
)

// convert moves a value between the core's wire types and mediasoup's. Both
// sides follow the mediasoup JSON schema, so the JSON form is the contract.
func convert[T any](in any) (T, error) {
	var out T
	b, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

// webRtcTransportOptions builds the mediasoup transport options document:
// one listen info per enabled protocol, preferred protocol first.
func webRtcTransportOptions(opts media.TransportOptions) map[string]any {
	udp, tcp := opts.EnableUDP, opts.EnableTCP
	if !udp && !tcp {
		udp = true
	}

	listenInfo := func(protocol string) map[string]any {
		info := map[string]any{"protocol": protocol, "ip": opts.ListenIP}
		if opts.AnnouncedIP != "" {
			info["announcedAddress"] = opts.AnnouncedIP
		}
		if opts.PortMin > 0 && opts.PortMax >= opts.PortMin {
			info["portRange"] = map[string]any{"min": opts.PortMin, "max": opts.PortMax}
		}
		return info
	}

	var infos []map[string]any
	switch {
	case udp && tcp && !opts.PreferUDP:
		infos = append(infos, listenInfo("tcp"), listenInfo("udp"))
	case udp && tcp:
		infos = append(infos, listenInfo("udp"), listenInfo("tcp"))
	case tcp:
		infos = append(infos, listenInfo("tcp"))
	default:
		infos = append(infos, listenInfo("udp"))
	}

	out := map[string]any{
		"listenInfos": infos,
		"enableUdp":   udp,
		"enableTcp":   tcp,
		"preferUdp":   opts.PreferUDP,
		"preferTcp":   tcp && !opts.PreferUDP,
	}
	if opts.InitialAvailableOutgoingBitrate > 0 {
		out["initialAvailableOutgoingBitrate"] = opts.InitialAvailableOutgoingBitrate
	}
	return out
}
