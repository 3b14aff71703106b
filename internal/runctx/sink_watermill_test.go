package runctx

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/rerun/internal/wire"
)

func TestWatermillSink_RoundTrip(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "forward_msgs")
	require.NoError(t, err)

	c := New("sess", nil, NewWatermillSink(pubSub, "forward_msgs"))
	require.NoError(t, c.Enqueue(pageConfig()))
	require.NoError(t, c.Enqueue(content()))

	var envs []Envelope
	for len(envs) < 2 {
		select {
		case msg := <-messages:
			msg.Ack()
			env, err := DecodeEnvelope(msg)
			require.NoError(t, err)
			assert.Equal(t, string(env.Msg.Kind()), msg.Metadata.Get(MetadataKind))
			envs = append(envs, env)
		case <-ctx.Done():
			t.Fatal("timed out waiting for message")
		}
	}

	// gochannel does not order deliveries unless publishes block on acks
	sort.Slice(envs, func(i, j int) bool { return envs[i].Sequence < envs[j].Sequence })
	for i, want := range []wire.MsgKind{wire.MsgPageConfigChanged, wire.MsgDelta} {
		assert.Equal(t, "sess", envs[i].SessionID)
		assert.Equal(t, uint64(i+1), envs[i].Sequence)
		assert.Equal(t, want, envs[i].Msg.Kind())
	}
}

func TestNullSink(t *testing.T) {
	assert.NoError(t, NewNullSink().Publish(Envelope{Msg: content()}))
}
