package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/dkeye/Conference/internal/media/mediatest"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var both = []media.Kind{media.KindAudio, media.KindVideo}

func requirePair(t *testing.T, p *Participant, owner domain.ParticipantID, kinds ...media.Kind) ConsumerPair {
	t.Helper()
	pair, ok := p.ConsumerPair(owner)
	require.True(t, ok, "%s has no consumers for %s", p.ID(), owner)
	for _, kind := range kinds {
		require.NotNil(t, pair.get(kind), "%s missing %s consumer for %s", p.ID(), kind, owner)
	}
	return pair
}

func TestReady_LinksBothDirections(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a, both...)
	withMedia(t, room, b, both...)

	own, deliveries, err := room.Ready(ctx, "a")
	require.NoError(t, err)

	require.Len(t, own, 1)
	assert.Equal(t, domain.ParticipantID("b"), own[0].ParticipantID)
	require.NotNil(t, own[0].AudioConsumer)
	require.NotNil(t, own[0].VideoConsumer)
	assert.True(t, own[0].AudioConsumer.Paused)
	assert.Equal(t, b.Producers().Audio.ID(), own[0].AudioConsumer.ProducerID)

	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.ParticipantID("b"), deliveries[0].To)
	assert.Equal(t, domain.ParticipantID("a"), deliveries[0].Consumers.ParticipantID)

	requirePair(t, a, "b", both...)
	requirePair(t, b, "a", both...)

	// b's own ready finds every slot already filled.
	own, deliveries, err = room.Ready(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, own)
	assert.Empty(t, deliveries)
	assert.True(t, b.IsReady())
	assert.Equal(t, domain.StateReady, b.State())
}

func TestReady_ConcurrentIsSymmetric(t *testing.T) {
	reg, _ := newTestRegistry(t)
	const n = 6
	var room *Room
	ps := make([]*Participant, n)
	for i := range n {
		room, ps[i] = join(t, reg, "r", pid(i))
		withMedia(t, room, ps[i], both...)
	}

	var wg conc.WaitGroup
	for _, p := range ps {
		wg.Go(func() {
			_, _, err := room.Ready(context.Background(), p.ID())
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	for _, p := range ps {
		assert.Len(t, p.ConsumerOwners(), n-1)
		for _, q := range ps {
			if p == q {
				continue
			}
			pair := requirePair(t, p, q.ID(), both...)
			assert.Equal(t, q.Producers().Audio.ID(), pair.Audio.ProducerID())
			assert.Equal(t, q.Producers().Video.ID(), pair.Video.ProducerID())
		}
	}
}

func TestReady_AbsentProducerIsSkipped(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a)
	withMedia(t, room, b, media.KindAudio)

	own, _, err := room.Ready(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.NotNil(t, own[0].AudioConsumer)
	assert.Nil(t, own[0].VideoConsumer)

	pair := requirePair(t, a, "b", media.KindAudio)
	assert.Nil(t, pair.Video)
	_, ok := b.ConsumerPair("a")
	assert.False(t, ok, "a has no producers, b receives nothing")
}

func TestReady_IncompatibleCapabilitiesSkip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a, both...)
	require.NoError(t, b.SetCapabilities(mediatest.AudioOnlyCapabilities()))

	_, deliveries, err := room.Ready(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.NotNil(t, deliveries[0].Consumers.AudioConsumer)
	assert.Nil(t, deliveries[0].Consumers.VideoConsumer)
}

func TestReady_SkipsParticipantsWithoutCapabilities(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, a := join(t, reg, "r", "a")
	join(t, reg, "r", "b")
	withMedia(t, room, a, both...)

	_, deliveries, err := room.Ready(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestReady_RequiresCapabilities(t *testing.T) {
	reg, _ := newTestRegistry(t)
	room, _ := join(t, reg, "r", "a")

	_, _, err := room.Ready(context.Background(), "a")
	require.ErrorIs(t, err, domain.ErrCapabilitiesMissing)
	assert.ErrorIs(t, err, domain.ErrProtocolViolation)

	_, _, err = room.Ready(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestProduce_FailureKeepsOtherKind(t *testing.T) {
	reg, eng := newTestRegistry(t)
	ctx := context.Background()
	room, a := join(t, reg, "r", "a")

	audioID, _, err := room.Produce(ctx, "a", media.KindAudio, mediatest.Params(media.KindAudio))
	require.NoError(t, err)

	eng.Faults.FailProduce(media.KindVideo, true)
	_, _, err = room.Produce(ctx, "a", media.KindVideo, mediatest.Params(media.KindVideo))
	require.ErrorIs(t, err, media.ErrEngine)

	set := a.Producers()
	require.NotNil(t, set.Audio)
	assert.Equal(t, audioID, set.Audio.ID())
	assert.False(t, set.Audio.Closed())
	assert.Nil(t, set.Video)

	eng.Faults.FailProduce(media.KindVideo, false)
	videoID, _, err := room.Produce(ctx, "a", media.KindVideo, mediatest.Params(media.KindVideo))
	require.NoError(t, err)
	assert.NotEqual(t, audioID, videoID)
	assert.Equal(t, domain.StateProducing, a.State())
}

func TestProduce_SecondOfSameKind(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	room, _ := join(t, reg, "r", "a")

	_, _, err := room.Produce(ctx, "a", media.KindAudio, mediatest.Params(media.KindAudio))
	require.NoError(t, err)
	_, _, err = room.Produce(ctx, "a", media.KindAudio, mediatest.Params(media.KindAudio))
	require.ErrorIs(t, err, domain.ErrProducerExists)
	assert.ErrorIs(t, err, domain.ErrProtocolViolation)
}

func TestProduce_AfterReadyFansOut(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a)
	withMedia(t, room, b)
	_, _, err := room.Ready(ctx, "a")
	require.NoError(t, err)

	id, deliveries, err := room.Produce(ctx, "a", media.KindAudio, mediatest.Params(media.KindAudio))
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.ParticipantID("b"), deliveries[0].To)
	require.NotNil(t, deliveries[0].Consumers.AudioConsumer)
	assert.Equal(t, id, deliveries[0].Consumers.AudioConsumer.ProducerID)

	requirePair(t, b, "a", media.KindAudio)
}

func TestResumeConsumer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a, media.KindAudio)
	withMedia(t, room, b, media.KindAudio)
	_, _, err := room.Ready(ctx, "a")
	require.NoError(t, err)

	pair := requirePair(t, b, "a", media.KindAudio)
	require.True(t, pair.Audio.Paused())
	require.NoError(t, room.ResumeConsumer(ctx, "b", "a", media.KindAudio))
	assert.False(t, pair.Audio.Paused())

	err = room.ResumeConsumer(ctx, "b", "a", media.KindVideo)
	assert.ErrorIs(t, err, domain.ErrConsumerNotFound)
}

func TestRemove_SweepsConsumers(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	_, c := join(t, reg, "r", "c")
	for _, p := range []*Participant{a, b, c} {
		withMedia(t, room, p, both...)
	}
	for _, p := range []*Participant{a, b, c} {
		_, _, err := room.Ready(ctx, p.ID())
		require.NoError(t, err)
	}
	aProducers := a.Producers()
	bFromA := requirePair(t, b, "a", both...)

	removed, closed := reg.Remove("r", "a")
	require.True(t, removed)
	require.False(t, closed)

	for _, q := range []*Participant{b, c} {
		assert.NotContains(t, q.ConsumerOwners(), domain.ParticipantID("a"))
	}
	assert.True(t, a.Closed())
	assert.True(t, a.SendTransport().Closed())
	assert.True(t, a.RecvTransport().Closed())
	assert.True(t, aProducers.Audio.Closed())
	assert.True(t, aProducers.Video.Closed())
	assert.True(t, bFromA.Audio.Closed())
	assert.True(t, bFromA.Video.Closed())

	requirePair(t, b, "c", both...)
	requirePair(t, c, "b", both...)
}

func TestRemove_RacingReadyLeavesNoEntries(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for range 20 {
		room, a := join(t, reg, "race", "a")
		_, b := join(t, reg, "race", "b")
		withMedia(t, room, a, both...)
		withMedia(t, room, b, both...)

		var wg conc.WaitGroup
		wg.Go(func() {
			_, _, _ = room.Ready(context.Background(), "a")
		})
		wg.Go(func() {
			reg.Remove("race", "b")
		})
		wg.Wait()

		assert.NotContains(t, a.ConsumerOwners(), domain.ParticipantID("b"))
		assert.True(t, b.Closed())
		reg.Remove("race", "a")
	}
}

func TestProduce_ParticipantRemovedDuringEngineCall(t *testing.T) {
	reg, eng := newTestRegistry(t)
	room, a := join(t, reg, "r", "a")
	join(t, reg, "r", "b")
	require.NoError(t, a.SetCapabilities(mediatest.ClientCapabilities()))

	var created media.Producer
	eng.Faults.AfterProduce(func(p media.Producer) {
		created = p
		reg.Remove("r", "a")
	})

	_, deliveries, err := room.Produce(context.Background(), "a", media.KindAudio, mediatest.Params(media.KindAudio))
	require.ErrorIs(t, err, domain.ErrParticipantClosed)
	assert.Empty(t, deliveries)

	require.NotNil(t, created)
	assert.True(t, created.Closed())
	assert.True(t, a.Closed())
	assert.Nil(t, a.Producers().Audio)
}

func TestProduce_RacingRemoveLeavesNoProducer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for range 20 {
		_, a := join(t, reg, "race", "a")
		join(t, reg, "race", "b")

		var (
			prod media.Producer
			err  error
			wg   conc.WaitGroup
		)
		wg.Go(func() {
			prod, err = a.Produce(context.Background(), media.KindAudio, mediatest.Params(media.KindAudio))
		})
		wg.Go(func() {
			reg.Remove("race", "a")
		})
		wg.Wait()

		if err != nil {
			// A transport closed under the call surfaces as an engine error.
			assert.True(t, errors.Is(err, domain.ErrParticipantClosed) || errors.Is(err, media.ErrEngine), "unexpected error: %v", err)
		} else {
			require.NotNil(t, prod)
			assert.True(t, prod.Closed())
		}
		assert.True(t, a.Closed())
		assert.Nil(t, a.Producers().Audio)
		reg.Remove("race", "b")
	}
}

func TestReady_ConsumerRemovedDuringEngineCall(t *testing.T) {
	reg, eng := newTestRegistry(t)
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a, media.KindAudio)
	withMedia(t, room, b)

	var created media.Consumer
	eng.Faults.AfterConsume(func(c media.Consumer) {
		created = c
		reg.Remove("r", "b")
	})

	own, deliveries, err := room.Ready(context.Background(), "b")
	require.NoError(t, err)
	assert.Empty(t, own)
	assert.Empty(t, deliveries)

	require.NotNil(t, created)
	assert.True(t, created.Closed())
	assert.True(t, b.Closed())
	assert.Empty(t, b.ConsumerOwners())
	_, ok := b.ConsumerPair("a")
	assert.False(t, ok)
	assert.False(t, a.Producers().Audio.Closed())
}

func TestProduce_FanOutTargetRemovedDuringEngineCall(t *testing.T) {
	reg, eng := newTestRegistry(t)
	ctx := context.Background()
	room, a := join(t, reg, "r", "a")
	_, b := join(t, reg, "r", "b")
	withMedia(t, room, a)
	withMedia(t, room, b)
	_, _, err := room.Ready(ctx, "a")
	require.NoError(t, err)

	var created media.Consumer
	eng.Faults.AfterConsume(func(c media.Consumer) {
		created = c
		reg.Remove("r", "b")
	})

	_, deliveries, err := room.Produce(ctx, "a", media.KindAudio, mediatest.Params(media.KindAudio))
	require.NoError(t, err)
	assert.Empty(t, deliveries)

	require.NotNil(t, created)
	assert.True(t, created.Closed())
	assert.Empty(t, b.ConsumerOwners())
	assert.False(t, a.Producers().Audio.Closed())
}
