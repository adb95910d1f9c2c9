//go:build integration

package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prona-platform/prona/internal/config"
	"github.com/prona-platform/prona/internal/testutil"
)

func TestPublisher_DayTotals(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, config.NATSConfig{URL: testutil.NATSURL(t)})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	assert.True(t, client.Healthy())

	pub := NewPublisher(client.JetStream())
	evt := DayTotalsUpdated{
		UserID:    uuid.New(),
		DayID:     uuid.New(),
		Date:      "2024-01-01",
		Calories:  156,
		Source:    "ai",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, pub.PublishDayTotals(ctx, evt))
	require.NoError(t, pub.PublishInteraction(ctx, InteractionRecorded{InteractionID: 1, UserID: evt.UserID}))

	stream, err := client.JetStream().Stream(ctx, StreamEvents)
	require.NoError(t, err)
	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectDayTotals},
	})
	require.NoError(t, err)

	msg, err := cons.Next(jetstream.FetchMaxWait(5 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, SubjectDayTotals, msg.Subject())

	var got DayTotalsUpdated
	require.NoError(t, json.Unmarshal(msg.Data(), &got))
	assert.Equal(t, evt.DayID, got.DayID)
	assert.Equal(t, 156.0, got.Calories)
	assert.Equal(t, "ai", got.Source)
}
