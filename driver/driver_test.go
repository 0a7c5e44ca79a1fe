package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/health"
	"github.com/c360/semlink/metric"
	"github.com/c360/semlink/pkg/worker"
	tu "github.com/c360/semlink/testutil"
	"github.com/c360/semlink/topics"
	"github.com/c360/semlink/vocabulary"
)

// recorder collects emitted events
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) Kinds() []Kind {
	var kinds []Kind
	for _, ev := range r.Events() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newMatcher(t *testing.T, tree map[string]any) *vocabulary.Matcher {
	t.Helper()
	var vt vocabulary.Tree
	if tree != nil {
		var err error
		vt, err = vocabulary.FromMap(tree)
		require.NoError(t, err)
	}
	m, err := vocabulary.New("en", vt)
	require.NoError(t, err)
	return m
}

func vasyaConfig() Config {
	cfg := DefaultConfig("vasya")
	cfg.Host = "vasya-host"
	cfg.PrivateTopic = "vasya"
	return cfg
}

// startDriver builds and starts a driver on an in-memory bus
func startDriver(t *testing.T, cfg Config, tree map[string]any, opts ...Option) (*Driver, *tu.MockTransport, *recorder) {
	t.Helper()

	bus := tu.NewMockTransport()
	rec := &recorder{}
	opts = append([]Option{WithHandler(rec.handle)}, opts...)

	d, err := New(cfg, bus, newMatcher(t, tree), opts...)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		_ = d.Halt(context.Background())
	})
	return d, bus, rec
}

func TestDriver_PrivateMessage(t *testing.T) {
	ctx := context.Background()
	d, bus, rec := startDriver(t, vasyaConfig(), nil)

	assert.Equal(t, []string{"vasya"}, d.Subjects())

	n := bus.Deliver(ctx, "vasya", tu.Envelope(t, "m-1", "hello vasya"))
	require.Equal(t, 1, n)

	events := rec.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, KindPrivate, ev.Kind)
	assert.Equal(t, "vasya", ev.Topic)
	assert.Equal(t, "hello vasya", ev.Payload.Text())
	require.NotNil(t, ev.Envelope)
	assert.Equal(t, "m-1", ev.Envelope.ID)
	assert.Equal(t, "petya", ev.Envelope.Sender.Name)
	assert.Nil(t, ev.Match)
}

func TestDriver_PrivateBypassesDedup(t *testing.T) {
	ctx := context.Background()
	_, bus, rec := startDriver(t, vasyaConfig(), nil)

	msg := tu.Envelope(t, "m-1", "twice")
	bus.Deliver(ctx, "vasya", msg)
	bus.Deliver(ctx, "vasya", msg)

	assert.Equal(t, []Kind{KindPrivate, KindPrivate}, rec.Kinds())
}

func TestDriver_GarbageIsNoiseOnce(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.Listen = topics.ListenChannels("light")
	d, bus, rec := startDriver(t, cfg, nil)

	bus.Deliver(ctx, "light", []byte("not json at all"))
	bus.Deliver(ctx, "light", []byte("not json at all"))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, KindNoise, events[0].Kind)
	assert.Equal(t, "not json at all", events[0].Payload.Text())
	assert.Nil(t, events[0].Envelope)
	assert.ErrorIs(t, events[0].Err, errors.ErrMalformedMessage)

	stats := d.Stats()
	assert.Equal(t, int64(2), stats.Received)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, int64(1), stats.Noise)
	assert.Equal(t, int64(1), stats.ByKind["noise"])
}

func TestDriver_InvalidEnvelopeIsNoise(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.Listen = topics.ListenChannels("light")
	_, bus, rec := startDriver(t, cfg, nil)

	// Parses as JSON but has no sender or payload
	bus.Deliver(ctx, "light", tu.RawEnvelope{ID: "x", ThreadID: "x"}.Bytes(t))
	// Noise on the private topic is still noise
	bus.Deliver(ctx, "vasya", []byte(`[1,2,3]`))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, KindNoise, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, errors.ErrInvalidEnvelope)
	assert.Equal(t, KindNoise, events[1].Kind)
	assert.Equal(t, "vasya", events[1].Topic)
}

func TestDriver_CommandTree(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.TreeListenDepth = 2
	d, bus, rec := startDriver(t, cfg, tu.KitchenTree())

	assert.Equal(t, []string{"kitchen", "light"}, d.Topics())
	assert.ElementsMatch(t, []string{"kitchen", "light", "vasya"}, d.Subjects())

	bus.Deliver(ctx, "light", tu.Envelope(t, "c-1", "light on"))
	bus.Deliver(ctx, "light", tu.Envelope(t, "c-2", "xyz"))

	events := rec.Events()
	require.Len(t, events, 2)

	cmd := events[0]
	assert.Equal(t, KindCommand, cmd.Kind)
	require.NotNil(t, cmd.Match)
	assert.True(t, cmd.Match.Found)
	assert.Equal(t, "on", cmd.Match.Command)
	assert.Equal(t, []string{"kitchen", "light", "on"}, cmd.Match.Path)

	ignored := events[1]
	assert.Equal(t, KindIgnored, ignored.Kind)
	require.NotNil(t, ignored.Match)
	assert.False(t, ignored.Match.Found)
	assert.Equal(t, "xyz", ignored.Match.Text)
}

func TestDriver_ObjectPayloadIsMessageEvenWithTree(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.TreeListenDepth = 2
	_, bus, rec := startDriver(t, cfg, tu.KitchenTree())

	bus.Deliver(ctx, "kitchen", tu.RawEnvelope{
		ID: "o-1", ThreadID: "o-1", SenderName: "petya", SenderHost: "h",
		Payload: map[string]any{"light": "on"},
	}.Bytes(t))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, KindMessage, events[0].Kind)
	assert.Equal(t, "on", events[0].Payload.Object()["light"])
	assert.Nil(t, events[0].Match)
}

func TestDriver_PrivateWinsOverCommand(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.TreeListenDepth = 2
	_, bus, rec := startDriver(t, cfg, tu.KitchenTree())

	bus.Deliver(ctx, "vasya", tu.Envelope(t, "p-1", "light on"))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, KindPrivate, events[0].Kind)
	assert.Nil(t, events[0].Match)
}

func TestDriver_GlobalTopic(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.GlobalTopic = "everyone"
	d, bus, rec := startDriver(t, cfg, tu.KitchenTree())

	assert.ElementsMatch(t, []string{"vasya", "everyone"}, d.Subjects())

	bus.Deliver(ctx, "everyone", tu.Envelope(t, "g-1", "light on"))
	bus.Deliver(ctx, "everyone", tu.Envelope(t, "g-1", "light on"))

	assert.Equal(t, []Kind{KindGlobal, KindGlobal}, rec.Kinds())
}

func TestDriver_DedupAcrossTopics(t *testing.T) {
	ctx := context.Background()
	cfg := vasyaConfig()
	cfg.Listen = topics.ListenChannels("alpha", "bravo")
	d, bus, rec := startDriver(t, cfg, nil)

	msg := tu.Envelope(t, "d-1", "same message")
	bus.Deliver(ctx, "alpha", msg)
	bus.Deliver(ctx, "bravo", msg)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, KindMessage, events[0].Kind)
	assert.Equal(t, "alpha", events[0].Topic)
	assert.Equal(t, int64(1), d.Stats().Duplicates)
}

func TestDriver_DedupForgetsAfterWindow(t *testing.T) {
	ctx := context.Background()
	clock := tu.NewMockClock(time.Unix(1_700_000_000, 0))
	cfg := vasyaConfig()
	cfg.Listen = topics.ListenChannels("alpha")
	cfg.PruneInterval = time.Hour
	d, bus, rec := startDriver(t, cfg, nil, WithClock(clock.Now))

	msg := tu.Envelope(t, "d-1", "again")
	bus.Deliver(ctx, "alpha", msg)

	clock.Advance(30 * time.Minute)
	d.dedup.Prune(clock.Now())
	bus.Deliver(ctx, "alpha", msg)
	assert.Len(t, rec.Events(), 1)

	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, d.dedup.Prune(clock.Now()))
	bus.Deliver(ctx, "alpha", msg)
	assert.Len(t, rec.Events(), 2)
}

func TestDriver_SubscriptionsDeduplicated(t *testing.T) {
	cfg := vasyaConfig()
	cfg.Listen = topics.ListenChannels("vasya", "light")
	d, bus, _ := startDriver(t, cfg, nil)

	assert.Equal(t, []string{"light", "vasya"}, d.Subjects())
	assert.Equal(t, []string{"light", "vasya"}, bus.Subjects())
}

func TestDriver_HandlerPanicIsolated(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	_, bus, _ := startDriver(t, vasyaConfig(), nil,
		WithHandler(func(context.Context, Event) { panic("boom") }),
		WithHandler(rec.handle))

	assert.NotPanics(t, func() {
		bus.Deliver(ctx, "vasya", tu.Envelope(t, "m-1", "hello"))
	})
	assert.Len(t, rec.Events(), 1)
}

func TestDriver_ReplyNotReplyable(t *testing.T) {
	ctx := context.Background()
	d, bus, rec := startDriver(t, vasyaConfig(), nil)

	bus.Deliver(ctx, "vasya", tu.RawEnvelope{
		ID: "n-1", ThreadID: "n-1", SenderName: "anon", SenderHost: "h", Payload: "no way back",
	}.Bytes(t))
	events := rec.Events()
	require.Len(t, events, 1)

	env, err := d.Reply(ctx, events[0].Envelope, "answer")
	assert.Nil(t, env)
	assert.ErrorIs(t, err, errors.ErrNotReplyable)
	assert.True(t, errors.IsInvalid(err))

	_, err = d.Reply(ctx, nil, "answer")
	assert.ErrorIs(t, err, errors.ErrNotReplyable)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, bus.PublishedSubjects())
}

func TestDriver_ReplyContinuesThread(t *testing.T) {
	ctx := context.Background()
	d, bus, rec := startDriver(t, vasyaConfig(), nil,
		WithIDGenerator(func() string { return "reply-1" }))

	bus.Deliver(ctx, "vasya", tu.RawEnvelope{
		ID: "q-1", ThreadID: "thread-7", SenderName: "petya", SenderHost: "h",
		SenderTopic: "petya", Payload: "ping",
	}.Bytes(t))
	events := rec.Events()
	require.Len(t, events, 1)

	env, err := d.Reply(ctx, events[0].Envelope, "pong")
	require.NoError(t, err)
	assert.Equal(t, "reply-1", env.ID)
	assert.Equal(t, "thread-7", env.ThreadID)

	raw := tu.WaitForMessage(t, bus, "petya", time.Second)
	msg := tu.DecodeJSON(t, raw)
	assert.Equal(t, "reply-1", msg["id"])
	assert.Equal(t, "thread-7", msg["threadId"])
	assert.Equal(t, "pong", msg["payload"])
	sender := msg["sender"].(map[string]any)
	assert.Equal(t, "vasya", sender["name"])
	assert.Equal(t, "vasya-host", sender["host"])
	assert.Equal(t, "vasya", sender["topic"])
}

func TestDriver_ReplyPrefersReplyTo(t *testing.T) {
	ctx := context.Background()
	d, bus, rec := startDriver(t, vasyaConfig(), nil)

	bus.Deliver(ctx, "vasya", tu.RawEnvelope{
		ID: "q-1", ThreadID: "q-1", SenderName: "petya", SenderHost: "h",
		SenderTopic: "petya", ReplyTo: "petya.inbox", Payload: "ping",
	}.Bytes(t))
	events := rec.Events()
	require.Len(t, events, 1)

	_, err := d.Reply(ctx, events[0].Envelope, map[string]any{"status": "ok"})
	require.NoError(t, err)

	raw := tu.WaitForMessage(t, bus, "petya.inbox", time.Second)
	assert.Equal(t, map[string]any{"status": "ok"}, tu.DecodeJSON(t, raw)["payload"])
	tu.AssertNoMessages(t, bus, "petya")
}

func TestDriver_SendFIFOPerChannel(t *testing.T) {
	ctx := context.Background()
	d, bus, _ := startDriver(t, vasyaConfig(), nil)

	const count = 50
	for i := 0; i < count; i++ {
		env, err := d.Send(ctx, List("petya", "kolya"), fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
		assert.Equal(t, env.ID, env.ThreadID)
	}

	for _, topic := range []string{"petya", "kolya"} {
		msgs := tu.WaitForMessageCount(t, bus, topic, count, 2*time.Second)
		for i, raw := range msgs {
			assert.Equal(t, fmt.Sprintf("msg-%d", i), tu.DecodeJSON(t, raw)["payload"], "topic %s", topic)
		}
	}
	require.Eventually(t, func() bool {
		return d.Stats().Published == 2*count
	}, time.Second, 5*time.Millisecond)
}

func TestDriver_SendTokenizesTopicWithTree(t *testing.T) {
	ctx := context.Background()
	d, bus, _ := startDriver(t, vasyaConfig(), tu.KitchenTree())

	_, err := d.Send(ctx, Topic("please turn on the Kitchen light"), "light on")
	require.NoError(t, err)

	tu.WaitForMessage(t, bus, "kitchen", time.Second)
	tu.WaitForMessage(t, bus, "light", time.Second)
	tu.WaitForMessage(t, bus, "turn", time.Second)
	assert.Equal(t, []string{"kitchen", "light", "turn"}, bus.PublishedSubjects())
}

func TestDriver_SendLiteralTopicWithoutTree(t *testing.T) {
	ctx := context.Background()
	d, bus, _ := startDriver(t, vasyaConfig(), nil)

	_, err := d.Send(ctx, Topic("robots.all"), map[string]any{"x": 1})
	require.NoError(t, err)
	tu.WaitForMessage(t, bus, "robots.all", time.Second)
}

func TestDriver_SendNoChannels(t *testing.T) {
	ctx := context.Background()
	d, _, _ := startDriver(t, vasyaConfig(), tu.KitchenTree())

	_, err := d.Send(ctx, Topic("on of"), "x")
	assert.ErrorIs(t, err, ErrNoChannels)
	assert.True(t, errors.IsInvalid(err))

	_, err = d.Send(ctx, List(), "x")
	assert.ErrorIs(t, err, ErrNoChannels)
}

func TestDriver_SendRejectsBadPayload(t *testing.T) {
	ctx := context.Background()
	d, bus, _ := startDriver(t, vasyaConfig(), nil)

	_, err := d.Send(ctx, List("petya"), 42)
	assert.True(t, errors.IsInvalid(err))

	_, err = d.Send(ctx, List("petya"), "")
	assert.ErrorIs(t, err, errors.ErrInvalidEnvelope)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, bus.PublishedSubjects())
}

func TestDriver_SendRaw(t *testing.T) {
	ctx := context.Background()
	d, bus, _ := startDriver(t, vasyaConfig(), nil)

	require.NoError(t, d.SendRaw(ctx, List("petya"), []byte("raw bytes")))
	assert.Equal(t, []byte("raw bytes"), tu.WaitForMessage(t, bus, "petya", time.Second))
}

func TestDriver_SendBeforeStart(t *testing.T) {
	ctx := context.Background()
	d, err := New(vasyaConfig(), tu.NewMockTransport(), newMatcher(t, nil))
	require.NoError(t, err)

	_, err = d.Send(ctx, List("petya"), "early")
	assert.ErrorIs(t, err, errors.ErrNotStarted)
	assert.True(t, errors.IsInvalid(err))

	require.NoError(t, d.Halt(ctx))
}

func TestDriver_HaltStopsEvents(t *testing.T) {
	ctx := context.Background()
	bus := tu.NewMockTransport()
	rec := &recorder{}
	d, err := New(vasyaConfig(), bus, newMatcher(t, nil), WithHandler(rec.handle))
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	require.NoError(t, d.Halt(ctx))
	assert.Equal(t, StateHalted, d.State())
	assert.True(t, bus.IsClosed())

	// A late delivery racing Halt is discarded
	d.handleMessage(ctx, "vasya", tu.Envelope(t, "late", "too late"))
	assert.Empty(t, rec.Events())

	_, err = d.Send(ctx, List("petya"), "after halt")
	assert.ErrorIs(t, err, errors.ErrHalted)

	err = d.Start(ctx)
	assert.ErrorIs(t, err, errors.ErrHalted)
	assert.True(t, errors.IsFatal(err))

	require.NoError(t, d.Halt(ctx))
	assert.Equal(t, 1, bus.CloseCalls())
}

func TestDriver_HaltDrainsQueuedPublishes(t *testing.T) {
	ctx := context.Background()
	bus := tu.NewMockTransport()
	d, err := New(vasyaConfig(), bus, newMatcher(t, nil))
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	for i := 0; i < 20; i++ {
		_, err := d.Send(ctx, List("petya"), fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, d.Halt(ctx))
	assert.Equal(t, 20, bus.GetMessageCount("petya"))
}

// gatedDriver starts a driver with a single publish lane whose transport
// holds every publish until bus.PublishGate is closed
func gatedDriver(t *testing.T, queueSize int, drain time.Duration) (*Driver, *tu.MockTransport) {
	t.Helper()
	cfg := vasyaConfig()
	cfg.PublishLanes = 1
	cfg.PublishQueueSize = queueSize
	cfg.DrainTimeout = drain

	bus := tu.NewMockTransport()
	bus.PublishGate = make(chan struct{})
	d, err := New(cfg, bus, newMatcher(t, nil))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	// The first publish is taken off the lane and held at the gate
	_, err = d.Send(context.Background(), List("kitchen"), "held")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.lanes.Stats().QueueDepth == 0 },
		time.Second, 5*time.Millisecond)
	return d, bus
}

func TestDriver_SendQueuesAllChannelsOrNone(t *testing.T) {
	ctx := context.Background()
	d, bus := gatedDriver(t, 2, time.Second)

	_, err := d.Send(ctx, List("kitchen"), "second")
	require.NoError(t, err)

	// One slot is left but two channels share the lane
	_, err = d.Send(ctx, List("hall", "garage"), "third")
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrQueueFull)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, 1, d.lanes.Stats().QueueDepth)

	close(bus.PublishGate)
	require.NoError(t, d.Halt(ctx))
	assert.Equal(t, 2, bus.GetMessageCount("kitchen"))
	assert.Equal(t, 0, bus.GetMessageCount("hall"))
	assert.Equal(t, 0, bus.GetMessageCount("garage"))
}

func TestDriver_HaltAbandonsQueueAfterDrainTimeout(t *testing.T) {
	ctx := context.Background()
	d, bus := gatedDriver(t, 4, 50*time.Millisecond)

	for _, text := range []string{"second", "third"} {
		_, err := d.Send(ctx, List("kitchen"), text)
		require.NoError(t, err)
	}

	err := d.Halt(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrStopTimeout)
	assert.True(t, bus.IsClosed())

	close(bus.PublishGate)
	assert.Never(t, func() bool { return bus.GetMessageCount("kitchen") > 0 },
		200*time.Millisecond, 10*time.Millisecond)
}

func TestDriver_StartTwice(t *testing.T) {
	d, _, _ := startDriver(t, vasyaConfig(), nil)

	err := d.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
	assert.Equal(t, StateRunning, d.State())
}

func TestDriver_SubscribeFailure(t *testing.T) {
	bus := tu.NewMockTransport()
	bus.SubscribeErr = stderrors.New("permission denied")

	d, err := New(vasyaConfig(), bus, newMatcher(t, nil))
	require.NoError(t, err)

	err = d.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransport)
	assert.Contains(t, err.Error(), "permission denied")
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StateHalted, d.State())
}

func TestDriver_PublishErrorHook(t *testing.T) {
	ctx := context.Background()
	d, bus, _ := startDriver(t, vasyaConfig(), nil)

	var (
		mu     sync.Mutex
		failed []string
	)
	d.OnPublishError(func(topic string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, topic)
	})

	bus.PublishErr = stderrors.New("broker unavailable")
	_, err := d.Send(ctx, List("petya"), "lost")
	require.NoError(t, err, "publish failures are asynchronous")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), d.Stats().PublishErrors)
}

func TestDriver_New(t *testing.T) {
	bus := tu.NewMockTransport()
	vocab := newMatcher(t, nil)

	t.Run("missing transport", func(t *testing.T) {
		_, err := New(vasyaConfig(), nil, vocab)
		assert.ErrorIs(t, err, errors.ErrMissingConfig)
	})

	t.Run("missing vocabulary", func(t *testing.T) {
		_, err := New(vasyaConfig(), bus, nil)
		assert.ErrorIs(t, err, errors.ErrMissingConfig)
	})

	t.Run("defaults applied", func(t *testing.T) {
		d, err := New(Config{Name: "vasya", PrivateTopic: "vasya"}, bus, vocab)
		require.NoError(t, err)
		cfg := d.Config()
		assert.NotEmpty(t, cfg.Host)
		assert.Equal(t, "vasya", cfg.ReplyTopic)
		assert.Equal(t, DefaultMinTokenLength, cfg.MinTokenLength)
		assert.Equal(t, DefaultPruneInterval, cfg.DedupWindow)
		assert.Equal(t, StateCreated, d.State())
		assert.Empty(t, d.Topics())
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no name", func(c *Config) { c.Name = "" }, "robot name is required"},
		{"negative depth", func(c *Config) { c.TreeListenDepth = -1 }, "treeListenDepth"},
		{"zero token length", func(c *Config) { c.MinTokenLength = 0 }, "minTokenLength"},
		{"zero prune interval", func(c *Config) { c.PruneInterval = 0 }, "pruneInterval"},
		{"same private and global", func(c *Config) { c.GlobalTopic = "vasya" }, "must differ"},
		{"negative lanes", func(c *Config) { c.PublishLanes = -1 }, "publish lanes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := vasyaConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestChannels(t *testing.T) {
	assert.False(t, Topic("a b").IsList())
	assert.Equal(t, "a b", Topic("a b").String())
	assert.True(t, List().IsList())
	assert.Equal(t, "[a b]", List("a", "b").String())
}

func TestDriver_Status(t *testing.T) {
	ctx := context.Background()
	bus := tu.NewMockTransport()
	d, err := New(vasyaConfig(), bus, newMatcher(t, nil))
	require.NoError(t, err)

	assert.Equal(t, health.StateDegraded, d.Status().Status)

	require.NoError(t, d.Start(ctx))
	bus.Deliver(ctx, "vasya", tu.Envelope(t, "m-1", "hello"))

	status := d.Status()
	assert.True(t, status.IsHealthy())
	require.NotNil(t, status.Metrics)
	assert.Equal(t, int64(1), status.Metrics.MessagesReceived)
	assert.Equal(t, int64(1), status.Metrics.EventsEmitted)
	require.Len(t, status.SubStatuses, 2)

	require.NoError(t, d.Halt(ctx))
	assert.True(t, d.Status().IsUnhealthy())
}

func TestDriver_Metrics(t *testing.T) {
	ctx := context.Background()
	registry := metric.NewMetricsRegistry()
	cfg := vasyaConfig()
	cfg.Listen = topics.ListenChannels("alpha")
	d, bus, _ := startDriver(t, cfg, nil, WithMetrics(registry))

	core := registry.CoreMetrics()
	assert.Equal(t, float64(StateRunning), testutil.ToFloat64(core.DriverStatus.WithLabelValues("vasya")))

	bus.Deliver(ctx, "alpha", tu.Envelope(t, "m-1", "hello"))
	bus.Deliver(ctx, "alpha", []byte("garbage"))

	assert.Equal(t, 2.0, testutil.ToFloat64(core.MessagesReceived.WithLabelValues("vasya")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.EventsEmitted.WithLabelValues("vasya", "message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.EventsEmitted.WithLabelValues("vasya", "noise")))

	_, err := d.Send(ctx, List("petya"), "hi")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(core.MessagesPublished.WithLabelValues("vasya", "petya")) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Halt(ctx))
	assert.Equal(t, float64(StateHalted), testutil.ToFloat64(core.DriverStatus.WithLabelValues("vasya")))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "noise", KindNoise.String())
	assert.Equal(t, "command", KindCommand.String())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.Equal(t, "running", StateRunning.String())
}
