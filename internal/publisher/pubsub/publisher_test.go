package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublisherPublishesToFakeServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := pstest.NewServer()
	defer func() { _ = srv.Close() }()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "snapshots")
	require.NoError(t, err)
	defer topic.Stop()

	pub := New(topic, map[string]string{"source": "test"})
	id, err := pub.Publish(ctx, "run.completed", map[string]any{"run_id": "run-1", "exitosas": 2})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "run.completed", msgs[0].Attributes["event"])
	require.Equal(t, "test", msgs[0].Attributes["source"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	require.Equal(t, "run-1", payload["run_id"])
}

func TestPublisherValidation(t *testing.T) {
	t.Parallel()

	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), "run.completed", nil)
	require.Error(t, err)
	require.NoError(t, nilPub.Close())

	_, err = New(nil, nil).Publish(context.Background(), "run.completed", nil)
	require.Error(t, err)

	_, err = Dial(context.Background(), "", "topic")
	require.Error(t, err)
}
