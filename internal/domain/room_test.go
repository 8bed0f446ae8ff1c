package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomID(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{raw: "r1"},
		{raw: strings.Repeat("x", MaxRoomIDLen)},
		{raw: "", want: ErrRoomIDEmpty},
		{raw: strings.Repeat("x", MaxRoomIDLen+1), want: ErrRoomIDTooLong},
	}
	for _, tt := range tests {
		id, err := NewRoomID(tt.raw)
		if tt.want != nil {
			assert.ErrorIs(t, err, tt.want)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, RoomID(tt.raw), id)
	}
}

func TestProtocolErrors(t *testing.T) {
	for _, err := range []error{ErrNotJoined, ErrCapabilitiesMissing, ErrProducerExists, ErrInvalidKind} {
		assert.ErrorIs(t, err, ErrProtocolViolation, err.Error())
	}
	assert.False(t, errors.Is(ErrRoomNotFound, ErrProtocolViolation))
}
