package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantExists   = errors.New("participant already in room")
	ErrParticipantClosed   = errors.New("participant closed")
	ErrConsumerNotFound    = errors.New("consumer not found")

	ErrProtocolViolation = errors.New("protocol violation")
)

// Protocol violations wrap ErrProtocolViolation so callers can match the class.
var (
	ErrNotJoined           = protocolError("not joined to room")
	ErrCapabilitiesMissing = protocolError("rtp capabilities not announced")
	ErrProducerExists      = protocolError("producer of this kind already exists")
	ErrInvalidKind         = protocolError("invalid media kind")
)

type protocolViolation struct{ msg string }

func protocolError(msg string) error { return &protocolViolation{msg: msg} }

func (e *protocolViolation) Error() string { return e.msg }

func (e *protocolViolation) Unwrap() error { return ErrProtocolViolation }
