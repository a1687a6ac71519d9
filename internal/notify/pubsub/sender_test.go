package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/listingwatch/internal/notify"
)

func TestNewRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{ProjectID: "p"})
	require.Error(t, err)
}

func TestSendPublishesJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	admin, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "alerts")
	require.NoError(t, err)

	sender, err := New(ctx, Config{ProjectID: "project-id", TopicID: "alerts"}, option.WithGRPCConn(conn))
	require.NoError(t, err)
	assert.Equal(t, "pubsub", sender.Name())

	msg := notify.Message{Title: "New listing found!", Content: "Found: 649991"}
	require.NoError(t, sender.Send(ctx, msg))

	var published []*pstest.Message
	require.Eventually(t, func() bool {
		published = srv.Messages()
		return len(published) == 1
	}, time.Second, 10*time.Millisecond)

	var got notify.Message
	require.NoError(t, json.Unmarshal(published[0].Data, &got))
	assert.Equal(t, msg, got)
	assert.Equal(t, msg.Title, published[0].Attributes["title"])
}

func TestSendToMissingTopicFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sender, err := New(ctx, Config{ProjectID: "project-id", TopicID: "missing"}, option.WithGRPCConn(conn))
	require.NoError(t, err)

	err = sender.Send(ctx, notify.TestMessage())
	require.Error(t, err)
}
