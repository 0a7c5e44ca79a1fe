//go:build integration

package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semlink/natsclient"
	tu "github.com/c360/semlink/testutil"
)

// startOnNATS connects a client to url and starts a driver on it
func startOnNATS(t *testing.T, url string, cfg Config, tree map[string]any) (*Driver, *natsclient.Client, *recorder) {
	t.Helper()
	ctx := context.Background()

	client, err := natsclient.NewClient(url, natsclient.WithName("semlink-"+cfg.Name))
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.WaitForConnection(ctx))

	rec := &recorder{}
	d, err := New(cfg, client, newMatcher(t, tree), WithHandler(rec.handle))
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	require.NoError(t, client.Flush(ctx))

	t.Cleanup(func() {
		_ = d.Halt(context.Background())
	})
	return d, client, rec
}

func eventsWithID(rec *recorder, id string) []Event {
	var out []Event
	for _, ev := range rec.Events() {
		if ev.Envelope != nil && ev.Envelope.ID == id {
			out = append(out, ev)
		}
	}
	return out
}

func TestIntegration_CommandAndReply(t *testing.T) {
	ctx := context.Background()
	url := tu.NewNATSContainer(t, natsclient.WithFastStartup())

	vasyaCfg := vasyaConfig()
	vasyaCfg.TreeListenDepth = 2
	vasyaCfg.GlobalTopic = "robots"
	vasya, _, vasyaEvents := startOnNATS(t, url, vasyaCfg, tu.KitchenTree())
	assert.Equal(t, []string{"kitchen", "light"}, vasya.Topics())

	petyaCfg := DefaultConfig("petya")
	petyaCfg.Host = "petya-host"
	petyaCfg.PrivateTopic = "petya"
	petya, _, petyaEvents := startOnNATS(t, url, petyaCfg, nil)

	sent, err := petya.Send(ctx, List("kitchen"), "light on")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(eventsWithID(vasyaEvents, sent.ID)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	heard := eventsWithID(vasyaEvents, sent.ID)[0]
	assert.Equal(t, KindCommand, heard.Kind)
	assert.Equal(t, "on", heard.Match.Command)
	assert.Equal(t, "petya", heard.Envelope.Sender.Topic)

	reply, err := vasya.Reply(ctx, heard.Envelope, "light is on")
	require.NoError(t, err)
	assert.Equal(t, sent.ID, reply.ThreadID)

	require.Eventually(t, func() bool {
		return len(eventsWithID(petyaEvents, reply.ID)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	answer := eventsWithID(petyaEvents, reply.ID)[0]
	assert.Equal(t, KindPrivate, answer.Kind)
	assert.Equal(t, "light is on", answer.Payload.Text())
	assert.Equal(t, sent.ID, answer.Envelope.ThreadID)

	_, err = petya.Send(ctx, Topic("robots"), "everyone up")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		for _, ev := range vasyaEvents.Events() {
			if ev.Kind == KindGlobal && ev.Payload.Text() == "everyone up" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestIntegration_DedupAcrossChannels(t *testing.T) {
	ctx := context.Background()
	url := tu.NewNATSContainer(t, natsclient.WithFastStartup())

	vasyaCfg := vasyaConfig()
	vasyaCfg.TreeListenDepth = 2
	vasya, _, vasyaEvents := startOnNATS(t, url, vasyaCfg, tu.KitchenTree())

	petyaCfg := DefaultConfig("petya")
	petyaCfg.PrivateTopic = "petya"
	petya, _, _ := startOnNATS(t, url, petyaCfg, nil)

	raw := tu.Envelope(t, "dup-1", "anyone hungry")
	require.NoError(t, petya.SendRaw(ctx, List("kitchen", "light"), raw))

	require.Eventually(t, func() bool {
		return len(eventsWithID(vasyaEvents, "dup-1")) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Never(t, func() bool {
		return len(eventsWithID(vasyaEvents, "dup-1")) > 1
	}, 300*time.Millisecond, 20*time.Millisecond)

	assert.Equal(t, KindIgnored, eventsWithID(vasyaEvents, "dup-1")[0].Kind)
	assert.Equal(t, int64(1), vasya.Stats().Duplicates)
}
