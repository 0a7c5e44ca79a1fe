package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/semlink/envelope"
	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/health"
	"github.com/c360/semlink/metric"
	"github.com/c360/semlink/pkg/dedup"
	"github.com/c360/semlink/pkg/worker"
	"github.com/c360/semlink/topics"
	"github.com/c360/semlink/vocabulary"
)

// State is the driver lifecycle state
type State int

// Lifecycle states. A halted driver cannot be restarted.
const (
	StateCreated State = iota
	StateRunning
	StateHalted
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// publishJob is one encoded message bound for one topic
type publishJob struct {
	topic string
	data  []byte
}

// Driver classifies inbound traffic into events and publishes outbound envelopes.
type Driver struct {
	cfg       Config
	transport Transport
	vocab     Vocabulary
	tree      vocabulary.Tree
	codec     *envelope.Codec
	dedup     *dedup.Cache
	lanes     *worker.Pool[publishJob]

	logger          *slog.Logger
	metricsRegistry *metric.MetricsRegistry
	metrics         *metric.Metrics
	now             func() time.Time
	newID           func() string

	noiseLog      *rate.Limiter
	noiseLogRate  float64
	noiseLogBurst int

	// Lifecycle
	mu        sync.RWMutex
	state     State
	startedAt time.Time
	listen    []string
	subjects  []string
	cancel    context.CancelFunc
	inflight  sync.WaitGroup

	handlersMu     sync.RWMutex
	handlers       []Handler
	onPublishError func(topic string, err error)

	stats Stats
}

// New builds a driver. Nothing is subscribed until Start.
func New(cfg Config, transport Transport, vocab Vocabulary, opts ...Option) (*Driver, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: transport", errors.ErrMissingConfig),
			"Driver", "New", "check dependencies")
	}
	if vocab == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: vocabulary", errors.ErrMissingConfig),
			"Driver", "New", "check dependencies")
	}

	d := &Driver{
		cfg:           cfg,
		transport:     transport,
		vocab:         vocab,
		tree:          vocab.Tree(),
		logger:        slog.Default(),
		now:           time.Now,
		noiseLogRate:  1,
		noiseLogBurst: 5,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "driver", "robot", cfg.Name)
	d.noiseLog = rate.NewLimiter(rate.Limit(d.noiseLogRate), d.noiseLogBurst)

	codecOpts := []envelope.Option{envelope.WithIDGenerator(d.newID)}
	if cfg.ReplyTo != "" {
		codecOpts = append(codecOpts, envelope.WithReplyTo(cfg.ReplyTo))
	}
	codec, err := envelope.NewCodec(envelope.Sender{
		Name:  cfg.Name,
		Host:  cfg.Host,
		Topic: cfg.ReplyTopic,
	}, codecOpts...)
	if err != nil {
		return nil, err
	}
	d.codec = codec

	dedupOpts := []dedup.Option{dedup.WithClock(d.now)}
	laneOpts := []worker.Option[publishJob]{}
	if d.metricsRegistry != nil {
		d.metrics = d.metricsRegistry.CoreMetrics()
		dedupOpts = append(dedupOpts, dedup.WithMetrics(d.metricsRegistry, cfg.Name))
		laneOpts = append(laneOpts, worker.WithMetricsRegistry[publishJob](d.metricsRegistry, cfg.Name))
	}

	d.dedup, err = dedup.New(cfg.DedupWindow, dedupOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Driver", "New", "create dedup cache")
	}
	d.lanes = worker.NewPool(cfg.PublishLanes, cfg.PublishQueueSize, d.publish, laneOpts...)

	d.recordState(StateCreated)
	return d, nil
}

// Name returns the robot name
func (d *Driver) Name() string {
	return d.cfg.Name
}

// Config returns the effective configuration with defaults applied
func (d *Driver) Config() Config {
	return d.cfg
}

// State returns the lifecycle state
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// OnEvent adds an event handler. Handlers added after Start see only later events.
func (d *Driver) OnEvent(h Handler) {
	if h == nil {
		return
	}
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.handlers = append(d.handlers, h)
}

// OnPublishError sets a hook for asynchronous publish failures
func (d *Driver) OnPublishError(fn func(topic string, err error)) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.onPublishError = fn
}

// Start derives the listen set, subscribes it together with the private and
// global topics, and starts the prune sweep and publish lanes.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateRunning:
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Driver", "Start", "check state")
	case StateHalted:
		return errors.WrapFatal(errors.ErrHalted, "Driver", "Start", "check state")
	}

	d.listen = topics.Derive(topics.Options{
		Listen:          d.cfg.Listen,
		TreeListenDepth: d.cfg.TreeListenDepth,
		MinTokenLength:  d.cfg.MinTokenLength,
		DefaultToken:    d.vocab.DefaultToken(),
	}, d.tree, d.vocab)
	d.subjects = d.subscriptionSet()

	// Detached from the caller's ctx: the driver runs until Halt
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	if err := d.lanes.Start(runCtx); err != nil {
		cancel()
		d.state = StateHalted
		return errors.WrapFatal(err, "Driver", "Start", "start publish lanes")
	}
	if err := d.dedup.Start(runCtx, d.cfg.PruneInterval); err != nil {
		d.abortStart()
		return errors.WrapFatal(err, "Driver", "Start", "start dedup sweep")
	}

	// Inbound handlers check state, so mark running before the first subscription
	d.state = StateRunning
	d.startedAt = time.Now()

	for _, subject := range d.subjects {
		if err := d.transport.Subscribe(runCtx, subject, d.handleMessage); err != nil {
			d.abortStart()
			return errors.WrapTransport(err, "Driver", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	d.logger.Info("Listening channels", "topics", d.listen)
	if d.cfg.PrivateTopic != "" {
		d.logger.Info("Listening private", "topic", d.cfg.PrivateTopic)
	}
	if d.cfg.GlobalTopic != "" {
		d.logger.Info("Listening global", "topic", d.cfg.GlobalTopic)
	}

	d.recordState(StateRunning)
	return nil
}

// abortStart unwinds a failed Start. Called with d.mu held.
func (d *Driver) abortStart() {
	d.state = StateHalted
	_ = d.lanes.Stop(d.cfg.DrainTimeout)
	_ = d.dedup.Close()
	d.cancel()
	d.recordState(StateHalted)
}

// subscriptionSet is the listen set plus private and global topics, without duplicates
func (d *Driver) subscriptionSet() []string {
	subjects := slices.Clone(d.listen)
	for _, t := range []string{d.cfg.PrivateTopic, d.cfg.GlobalTopic} {
		if t != "" && !slices.Contains(subjects, t) {
			subjects = append(subjects, t)
		}
	}
	return subjects
}

// Halt stops event emission, cancels the prune sweep, drains queued publishes
// and closes the transport. When Halt returns no further events are emitted.
// Halting twice is a no-op.
func (d *Driver) Halt(ctx context.Context) error {
	d.mu.Lock()
	prev := d.state
	d.state = StateHalted
	d.mu.Unlock()

	if prev == StateHalted {
		return nil
	}
	d.recordState(StateHalted)

	if prev == StateCreated {
		_ = d.lanes.Stop(0)
		_ = d.dedup.Close()
		if err := d.transport.Close(ctx); err != nil {
			return errors.WrapTransport(err, "Driver", "Halt", "close transport")
		}
		return nil
	}

	var errs []error

	// Wait for handlers already dispatching; new deliveries see the halted state
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, errors.Wrap(ctx.Err(), "Driver", "Halt", "wait for handlers"))
	}

	if err := d.dedup.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "Driver", "Halt", "stop dedup sweep"))
	}

	drain := d.cfg.DrainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < drain {
			drain = remaining
		}
	}
	if err := d.lanes.Stop(drain); err != nil {
		errs = append(errs, errors.Wrap(err, "Driver", "Halt", "drain publish lanes"))
	}

	// Lanes that missed the drain deadline abandon their queue here rather
	// than publish into a closed transport.
	d.cancel()

	if err := d.transport.Close(ctx); err != nil {
		errs = append(errs, errors.WrapTransport(err, "Driver", "Halt", "close transport"))
	}

	d.logger.Info("Driver halted")

	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}
	return nil
}

// Topics returns the derived listen set. It is empty before Start.
func (d *Driver) Topics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.listen)
}

// Subjects returns every topic the driver subscribed to
func (d *Driver) Subjects() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.subjects)
}

// Status reports driver health with dedup and publish lane details
func (d *Driver) Status() health.Status {
	d.mu.RLock()
	state := d.state
	startedAt := d.startedAt
	d.mu.RUnlock()

	snapshot := d.Stats()

	var status health.Status
	switch state {
	case StateRunning:
		status = health.NewHealthy("driver", fmt.Sprintf("listening on %d topics", len(d.Subjects())))
	case StateCreated:
		status = health.NewDegraded("driver", "not started")
	default:
		status = health.NewUnhealthy("driver", "halted")
	}

	m := &health.Metrics{
		ErrorCount:       int(snapshot.PublishErrors),
		MessagesReceived: snapshot.Received,
		EventsEmitted:    snapshot.Emitted,
		LastActivity:     snapshot.LastActivity,
	}
	if !startedAt.IsZero() {
		m.Uptime = time.Since(startedAt)
	}
	status = status.WithMetrics(m)

	lanes := d.lanes.Stats()
	laneStatus := health.NewHealthy("publish_lanes",
		fmt.Sprintf("%d queued, %d published", lanes.QueueDepth, lanes.Processed))
	if lanes.Dropped > 0 || lanes.Failed > 0 {
		laneStatus = health.NewDegraded("publish_lanes",
			fmt.Sprintf("%d dropped, %d failed", lanes.Dropped, lanes.Failed))
	}
	status = status.WithSubStatus(laneStatus)

	status = status.WithSubStatus(health.NewHealthy("dedup",
		fmt.Sprintf("%d identities, %d duplicates suppressed", d.dedup.Size(), d.dedup.Stats().Duplicates())))

	return status
}

func (d *Driver) recordState(s State) {
	if d.metrics != nil {
		d.metrics.RecordDriverStatus(d.cfg.Name, int(s))
	}
}
