package avr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/ziutek/telnet"
)

// ConnState is a Connection Manager state.
type ConnState string

// Connection states.
const (
	StateIdle        ConnState = "idle"
	StateConnecting  ConnState = "connecting"
	StateConnected   ConnState = "connected"
	StateDetecting   ConnState = "detecting"
	StateOperational ConnState = "operational"
	StateFailed      ConnState = "failed"
)

// State machine events.
const (
	evOpen       = "open"
	evConnected  = "connected"
	evDetect     = "detect"
	evClassified = "classified"
	evResume     = "resume"
	evFail       = "fail"
	evRetry      = "retry"
	evClose      = "close"
)

// Connection defaults.
const (
	DefaultPort           = 23
	DefaultConnectTimeout = 10 * time.Second
	DefaultIdleTimeout    = 35 * time.Second
	DefaultReconnectDelay = 30 * time.Second
	DefaultPollInterval   = 7 * time.Second
	DefaultCommandDelay   = 100 * time.Millisecond

	writeTimeout    = 5 * time.Second
	eventBufferSize = 256
	sendQueueSize   = 256
	readBufferSize  = 1024
)

// EventType classifies Connection Manager events.
type EventType int

// Event types.
const (
	EventConnected EventType = iota + 1
	EventLine
	EventDisconnected
)

// Event is delivered on Conn.Events.
type Event struct {
	Type EventType
	Line string
	Err  error
}

// Dialer opens the transport to the device.
type Dialer func(ctx context.Context, address string, timeout time.Duration) (net.Conn, error)

// TelnetDialer dials a telnet session, which strips IAC negotiation from
// the stream.
func TelnetDialer(_ context.Context, address string, timeout time.Duration) (net.Conn, error) {
	conn, err := telnet.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type stopper interface {
	Stop() bool
}

// afterFunc schedules f after d; time.AfterFunc in production.
type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// ConnOptions configures a Conn. Zero durations take the defaults, except
// PollInterval and CommandDelay where a negative value disables them.
type ConnOptions struct {
	Address        string
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	ReconnectDelay time.Duration
	PollInterval   time.Duration
	CommandDelay   time.Duration

	Dialer  Dialer
	Logger  Logger
	Metrics *Metrics
}

func (o *ConnOptions) applyDefaults() {
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.CommandDelay == 0 {
		o.CommandDelay = DefaultCommandDelay
	}
	if o.Dialer == nil {
		o.Dialer = TelnetDialer
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
}

// Conn is the Connection Manager. It owns the socket, the connection state
// machine, the paced send queue, the poll timer and reconnection.
//
// Thread Safety: All methods are safe for concurrent use.
type Conn struct {
	opts   ConnOptions
	logger Logger
	after  afterFunc

	machine *fsm.FSM
	events  chan Event
	sendq   chan string

	mu               sync.Mutex
	conn             net.Conn
	opened           bool
	closed           bool
	reconnectPending bool
	reconnectTimer   stopper
	pollTimer        *time.Timer
	pollCmds         []string
	lastErr          string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewConn creates an idle Connection Manager.
func NewConn(opts ConnOptions) *Conn {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		opts:   opts,
		logger: opts.Logger,
		after:  realAfterFunc,
		events: make(chan Event, eventBufferSize),
		sendq:  make(chan string, sendQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	active := []string{string(StateConnecting), string(StateConnected), string(StateDetecting), string(StateOperational)}
	c.machine = fsm.NewFSM(string(StateIdle),
		fsm.Events{
			{Name: evOpen, Src: []string{string(StateIdle)}, Dst: string(StateConnecting)},
			{Name: evConnected, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: evDetect, Src: []string{string(StateConnected)}, Dst: string(StateDetecting)},
			{Name: evClassified, Src: []string{string(StateDetecting)}, Dst: string(StateOperational)},
			{Name: evResume, Src: []string{string(StateConnected)}, Dst: string(StateOperational)},
			{Name: evFail, Src: active, Dst: string(StateFailed)},
			{Name: evRetry, Src: []string{string(StateFailed)}, Dst: string(StateConnecting)},
			{Name: evClose, Src: append(active, string(StateFailed)), Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			// Never trigger another event from here: the machine is mid-transition.
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug("connection state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
				c.opts.Metrics.setState(ConnState(e.Dst))
			},
		},
	)
	return c
}

// Events returns the channel of connection events.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	return ConnState(c.machine.Current())
}

// Address returns the configured device address.
func (c *Conn) Address() string {
	return c.opts.Address
}

// Open starts connecting in the background. Progress is reported on Events.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	first := !c.opened
	c.opened = true
	c.mu.Unlock()

	if err := c.machine.Event(ctx, evOpen); err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	if first {
		c.wg.Add(1)
		go c.writeLoop()
	}
	c.goDial()
	return nil
}

// Detect moves a fresh connection into receiver-type detection.
func (c *Conn) Detect(ctx context.Context) error {
	return c.machine.Event(ctx, evDetect)
}

// Classified completes detection.
func (c *Conn) Classified(ctx context.Context) error {
	return c.machine.Event(ctx, evClassified)
}

// Resume skips detection on a reconnect with a known dialect.
func (c *Conn) Resume(ctx context.Context) error {
	return c.machine.Event(ctx, evResume)
}

// SetPollCommands replaces the commands queued when the link goes quiet.
func (c *Conn) SetPollCommands(cmds []string) {
	c.mu.Lock()
	c.pollCmds = append([]string(nil), cmds...)
	c.mu.Unlock()
	c.armPoll()
}

// Send queues commands for the writer. Each is terminated with CR on the
// wire. Commands are dropped while the link is down.
func (c *Conn) Send(cmds ...string) {
	if !c.linkUp() {
		c.logger.Debug("dropping commands while disconnected", "commands", cmds, "state", string(c.State()))
		return
	}
	for _, cmd := range cmds {
		select {
		case c.sendq <- cmd:
		default:
			c.logger.Warn("send queue full, dropping command", "command", cmd)
		}
	}
}

func (c *Conn) linkUp() bool {
	switch c.State() {
	case StateConnected, StateDetecting, StateOperational:
		return true
	default:
		return false
	}
}

// Close stops all goroutines and timers, closes the socket and drops the
// send queue. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.conn = nil
		if c.reconnectTimer != nil {
			c.reconnectTimer.Stop()
		}
		if c.pollTimer != nil {
			c.pollTimer.Stop()
		}
		c.mu.Unlock()

		c.cancel()
		if conn != nil {
			conn.Close() //nolint:errcheck // shutting down
		}
		if c.State() != StateIdle {
			_ = c.machine.Event(context.Background(), evClose) //nolint:errcheck // best effort
		}
		c.wg.Wait()
		c.drainQueue()
	})
	return nil
}

func (c *Conn) goDial() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.wg.Add(1)
	go c.dial()
}

func (c *Conn) dial() {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.ConnectTimeout)
	conn, err := c.opts.Dialer(ctx, c.opts.Address, c.opts.ConnectTimeout)
	cancel()
	if err != nil {
		c.fail(fmt.Errorf("dialing %s: %w", c.opts.Address, err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close() //nolint:errcheck // closed while dialing
		return
	}
	c.conn = conn
	c.lastErr = ""
	c.mu.Unlock()

	if err := c.machine.Event(c.ctx, evConnected); err != nil {
		c.logger.Debug("connected event rejected", "error", err)
	}
	c.logger.Info("connected to receiver", "address", c.opts.Address)
	c.opts.Metrics.connected()
	c.emit(Event{Type: EventConnected})
	c.armPoll()

	c.wg.Add(1)
	go c.readLoop(conn)
}

func (c *Conn) readLoop(conn net.Conn) {
	defer c.wg.Done()

	var f framer
	buf := make([]byte, readBufferSize)
	for {
		if c.opts.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout)) //nolint:errcheck // surfaces on Read
		}
		n, err := conn.Read(buf)
		for _, line := range f.push(buf[:n]) {
			c.opts.Metrics.lineReceived()
			c.armPoll()
			c.emit(Event{Type: EventLine, Line: line})
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				err = fmt.Errorf("%w: nothing received for %v", ErrIdleTimeout, c.opts.IdleTimeout)
			}
			c.dropConn(conn, err)
			return
		}
	}
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()

	var next time.Time
	for {
		var cmd string
		select {
		case <-c.ctx.Done():
			return
		case cmd = <-c.sendq:
		}

		if wait := time.Until(next); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-c.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			c.logger.Debug("dropping command, no connection", "command", cmd)
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // surfaces on Write
		if _, err := conn.Write([]byte(cmd + "\r")); err != nil {
			c.dropConn(conn, fmt.Errorf("writing %q: %w", cmd, err))
			continue
		}
		c.opts.Metrics.commandSent()
		c.logger.Debug("command sent", "command", cmd)
		next = time.Now().Add(c.opts.CommandDelay)
	}
}

// dropConn tears down conn if it is still current and reports the failure.
// A later report for the same socket is ignored.
func (c *Conn) dropConn(conn net.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn || c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	conn.Close() //nolint:errcheck // already failed
	c.fail(err)
}

// fail records a transport failure, moves to Failed and schedules one
// reconnect.
func (c *Conn) fail(err error) {
	if c.isClosed() {
		return
	}
	c.logTransportError(err)
	c.stopPoll()
	c.drainQueue()

	if ferr := c.machine.Event(c.ctx, evFail); ferr != nil {
		c.logger.Debug("fail event rejected", "error", ferr)
	}
	c.emit(Event{Type: EventDisconnected, Err: err})
	c.scheduleReconnect()
}

func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.reconnectPending {
		c.logger.Debug("reconnect already scheduled")
		return
	}
	c.reconnectPending = true
	c.opts.Metrics.reconnectScheduled()
	c.reconnectTimer = c.after(c.opts.ReconnectDelay, c.reconnect)
}

func (c *Conn) reconnect() {
	c.mu.Lock()
	c.reconnectPending = false
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if err := c.machine.Event(c.ctx, evRetry); err != nil {
		c.logger.Debug("retry event rejected", "error", err)
		return
	}
	c.logger.Info("reconnecting to receiver", "address", c.opts.Address)
	c.goDial()
}

// logTransportError logs the first occurrence of an error at Warn and
// repeats at Debug until the next successful connect.
func (c *Conn) logTransportError(err error) {
	msg := err.Error()
	c.mu.Lock()
	repeat := msg == c.lastErr
	c.lastErr = msg
	c.mu.Unlock()

	if repeat {
		c.logger.Debug("receiver connection error repeated", "error", msg)
		return
	}
	c.logger.Warn("receiver connection error", "address", c.opts.Address, "error", err)
}

func (c *Conn) armPoll() {
	if c.opts.PollInterval <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.pollTimer != nil {
		c.pollTimer.Stop()
	}
	c.pollTimer = time.AfterFunc(c.opts.PollInterval, c.poll)
}

func (c *Conn) stopPoll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollTimer != nil {
		c.pollTimer.Stop()
		c.pollTimer = nil
	}
}

func (c *Conn) poll() {
	switch c.State() {
	case StateOperational:
		c.mu.Lock()
		cmds := c.pollCmds
		c.mu.Unlock()
		if len(cmds) > 0 {
			c.logger.Debug("link quiet, polling", "commands", len(cmds))
			c.Send(cmds...)
		}
		c.armPoll()
	case StateConnected, StateDetecting:
		c.armPoll()
	}
}

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Conn) drainQueue() {
	for {
		select {
		case <-c.sendq:
		default:
			return
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
