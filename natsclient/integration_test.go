//go:build integration

package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semlink/errors"
)

func TestIntegration_ConnectToRealNATS(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())

	assert.True(t, tc.IsReady())
	assert.Equal(t, StatusConnected, tc.Client.Status())
	assert.NotNil(t, tc.GetNativeConnection())

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestIntegration_CircuitBreakerWithRealConnection(t *testing.T) {
	ctx := context.Background()

	client, err := NewClient("nats://127.0.0.1:1", WithTimeout(200*time.Millisecond), WithMaxReconnects(0))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		err = client.Connect(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrTransport)
		assert.NotEqual(t, StatusCircuitOpen, client.Status())
	}

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusCircuitOpen, client.Status())

	start := time.Now()
	err = client.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestIntegration_PublishSubscribe(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	type delivery struct {
		subject string
		data    string
	}
	received := make(chan delivery, 1)
	err := tc.Client.Subscribe(ctx, "kitchen", func(_ context.Context, subject string, data []byte) {
		received <- delivery{subject: subject, data: string(data)}
	})
	require.NoError(t, err)
	require.NoError(t, tc.Client.Flush(ctx))
	assert.Equal(t, []string{"kitchen"}, tc.Client.Subjects())

	require.NoError(t, tc.Client.Publish(ctx, "kitchen", []byte(`{"hello":"robots"}`)))

	select {
	case d := <-received:
		assert.Equal(t, "kitchen", d.subject)
		assert.Equal(t, `{"hello":"robots"}`, d.data)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegration_PeerOrdering(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	peer, err := tc.NewPeer(ctx)
	require.NoError(t, err)
	defer peer.Close(ctx)

	const total = 50
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	err = tc.Client.Subscribe(ctx, "hall", func(_ context.Context, _ string, data []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(data))
		if len(got) == total {
			close(done)
		}
	})
	require.NoError(t, err)
	require.NoError(t, tc.Client.Flush(ctx))

	var want []string
	for i := 0; i < total; i++ {
		msg := string(rune('a' + i%26))
		want = append(want, msg)
		require.NoError(t, peer.Publish(ctx, "hall", []byte(msg)))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not all messages received")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestIntegration_CloseDrains(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	client, err := tc.NewPeer(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Subscribe(ctx, "drain", func(context.Context, string, []byte) {}))

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, client.Close(closeCtx))

	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Empty(t, client.Subjects())

	err = client.Publish(ctx, "drain", []byte("late"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestIntegration_HealthMonitoring(t *testing.T) {
	ctx := context.Background()

	container, url, err := StartNATSContainer(ctx, WithFastStartup())
	require.NoError(t, err)
	defer container.Terminate(ctx)

	healthChanges := make(chan bool, 10)
	client, err := NewClient(url,
		WithHealthInterval(100*time.Millisecond),
		WithMaxReconnects(0),
		WithHealthChangeCallback(func(healthy bool) { healthChanges <- healthy }),
	)
	require.NoError(t, err)

	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	select {
	case healthy := <-healthChanges:
		assert.True(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("initial health not reported")
	}

	require.NoError(t, container.Stop(ctx, nil))

	select {
	case healthy := <-healthChanges:
		assert.False(t, healthy)
	case <-time.After(5 * time.Second):
		t.Fatal("health change not detected")
	}
}
