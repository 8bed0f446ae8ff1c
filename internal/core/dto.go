package core

import (
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
)

// Everything in this file is a wire view: ids and parameters only, never
// engine handles.

type ProducerIDs struct {
	Audio *string `json:"audio"`
	Video *string `json:"video"`
}

type ParticipantSummary struct {
	ID         domain.ParticipantID `json:"id"`
	TimeJoined int64                `json:"timeJoined"`
	IsReady    bool                 `json:"isReady"`
	Producers  ProducerIDs          `json:"producers"`
}

type ConsumerDescriptor struct {
	ID            string              `json:"id"`
	ProducerID    string              `json:"producerId"`
	Kind          media.Kind          `json:"kind"`
	RtpParameters media.RtpParameters `json:"rtpParameters"`
	Paused        bool                `json:"paused"`
}

// ParticipantConsumers is what one participant receives from another.
type ParticipantConsumers struct {
	ParticipantID domain.ParticipantID `json:"participantId"`
	AudioConsumer *ConsumerDescriptor  `json:"audioConsumer,omitempty"`
	VideoConsumer *ConsumerDescriptor  `json:"videoConsumer,omitempty"`
}

func (pc ParticipantConsumers) Empty() bool {
	return pc.AudioConsumer == nil && pc.VideoConsumer == nil
}

type TransportParams struct {
	ID             string               `json:"id"`
	IceParameters  media.IceParameters  `json:"iceParameters"`
	IceCandidates  []media.IceCandidate `json:"iceCandidates"`
	DtlsParameters media.DtlsParameters `json:"dtlsParameters"`
}

type Transports struct {
	SendTransport TransportParams `json:"sendTransport"`
	RecvTransport TransportParams `json:"recvTransport"`
}

type RoomInfo struct {
	ID           domain.RoomID `json:"id"`
	Participants int           `json:"participants"`
}
