package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrikePolicy(t *testing.T) {
	p := NewStrikePolicy(3)

	assert.Equal(t, DropFrame, p.OnBackPressure("r", "a"))
	assert.Equal(t, DropFrame, p.OnBackPressure("r", "a"))
	assert.Equal(t, DropFrame, p.OnBackPressure("r", "b"))
	assert.Equal(t, KickMember, p.OnBackPressure("r", "a"))
	assert.Equal(t, DropFrame, p.OnBackPressure("r", "a"), "strikes restart after a kick")

	p.Forget("b")
	assert.Equal(t, DropFrame, p.OnBackPressure("r", "b"))
	assert.Equal(t, DropFrame, p.OnBackPressure("r", "b"))
	assert.Equal(t, KickMember, p.OnBackPressure("r", "b"))
}

func TestSimplePolicy(t *testing.T) {
	assert.Equal(t, KickMember, SimplePolicy{}.OnBackPressure("r", "a"))
}
