package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"rsoreplay/internal/breaker"
	"rsoreplay/internal/errs"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Options struct {
	Topic           string
	QoS             byte
	MonitorInterval time.Duration
	ConnectTimeout  time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	StoreTimeout    time.Duration
	// ReconnectTries bounds one reconnect round. The next monitor tick starts
	// a fresh round.
	ReconnectTries uint
}

// Stats counts message outcomes since Start.
type Stats struct {
	Received   uint64
	Appended   uint64
	Ignored    uint64
	Duplicates uint64
	Dropped    uint64
}

// Connector subscribes to the game-state topic and appends every decoded
// message to the snapshot log. Bad messages are logged and dropped; the
// subscription keeps running.
type Connector struct {
	dialer  Dialer
	breaker *breaker.Breaker
	seq     *Sequencer
	opts    Options
	logger  *slog.Logger

	state atomic.Int32
	lost  chan struct{}

	mu   sync.Mutex
	conn Conn

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	received   atomic.Uint64
	appended   atomic.Uint64
	ignored    atomic.Uint64
	duplicates atomic.Uint64
	dropped    atomic.Uint64
}

func NewConnector(dialer Dialer, busBreaker *breaker.Breaker, seq *Sequencer, opts Options, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 5 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.ReconnectTries == 0 {
		opts.ReconnectTries = 5
	}
	return &Connector{
		dialer:  dialer,
		breaker: busBreaker,
		seq:     seq,
		opts:    opts,
		logger:  logger.With("component", "ingest", "topic", opts.Topic),
		lost:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start makes one connection attempt and launches the reconnect monitor. A
// failed first attempt is logged, not returned; the monitor keeps trying.
func (c *Connector) Start(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		c.ctx, c.cancel = context.WithCancel(ctx)
		if err := c.connect(c.ctx); err != nil {
			c.logger.Warn("initial bus connection failed", "error", err)
		}
		go c.monitor()
	})
	if !started {
		return fmt.Errorf("connector already started")
	}
	return nil
}

// Close stops the monitor, waits for it to exit and then releases the
// connection. Safe to call more than once, and before Start.
func (c *Connector) Close() {
	c.closeOnce.Do(func() {
		c.startOnce.Do(func() {
			close(c.done)
		})
		if c.cancel != nil {
			c.cancel()
		}
		<-c.done

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		c.setState(StateDisconnected)
	})
}

func (c *Connector) State() State {
	return State(c.state.Load())
}

func (c *Connector) Stats() Stats {
	return Stats{
		Received:   c.received.Load(),
		Appended:   c.appended.Load(),
		Ignored:    c.ignored.Load(),
		Duplicates: c.duplicates.Load(),
		Dropped:    c.dropped.Load(),
	}
}

func (c *Connector) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Connector) monitor() {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		case <-c.lost:
		}

		if c.healthy() {
			continue
		}
		if err := c.reconnect(c.ctx); err != nil && c.ctx.Err() == nil {
			c.logger.Warn("bus reconnect round failed", "error", err, "next_check", c.opts.MonitorInterval)
		}
	}
}

func (c *Connector) healthy() bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil && conn.IsConnected() && c.State() == StateConnected {
		return true
	}
	c.setState(StateDisconnected)
	return false
}

func (c *Connector) reconnect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.connect(ctx)
		if err != nil && c.breaker != nil && c.breaker.State() == breaker.StateOpen {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.opts.ReconnectTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Info("bus reconnect attempt failed", "error", err, "retry_in", wait)
		}),
	)
	return err
}

// connect dials, subscribes and swaps the new connection in. The previous
// connection and its subscription are discarded.
func (c *Connector) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dial := func() (Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()

		conn, err := c.dialer.Dial(dialCtx, c.connectionLost)
		if err != nil {
			return nil, err
		}
		if err := conn.Subscribe(c.opts.Topic, c.opts.QoS, c.handle); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}

	var (
		conn Conn
		err  error
	)
	if c.breaker != nil {
		conn, err = breaker.Do(c.breaker, dial)
	} else {
		conn, err = dial()
	}
	if err != nil {
		c.setState(StateDisconnected)
		return errs.Unavailable(err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	c.setState(StateConnected)
	c.logger.Info("bus connected")
	return nil
}

func (c *Connector) connectionLost(err error) {
	c.setState(StateDisconnected)
	c.logger.Warn("bus connection lost", "error", err)
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

func (c *Connector) handle(msg Message) {
	c.received.Add(1)
	sessionID := SessionFromTopic(msg.Topic)
	logger := c.logger.With("session_id", sessionID, "message_topic", msg.Topic)

	entities, err := Decode(msg.Payload)
	if errors.Is(err, ErrIgnored) {
		c.ignored.Add(1)
		logger.Debug("ignoring message", "reason", err)
		return
	}
	if err != nil {
		c.dropped.Add(1)
		logger.Warn("dropping undecodable message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.StoreTimeout)
	defer cancel()

	snap, appended, err := c.seq.Append(ctx, sessionID, entities, Digest(msg.Payload), msg.Duplicate)
	if err != nil {
		c.dropped.Add(1)
		logger.Warn("dropping message after store failure", "error", err, "code", errs.Code(err))
		return
	}
	if !appended {
		c.duplicates.Add(1)
		logger.Debug("skipping duplicate delivery", "redelivery", msg.Duplicate)
		return
	}
	c.appended.Add(1)
	logger.Debug("snapshot appended", "sequence", snap.Sequence)
}
