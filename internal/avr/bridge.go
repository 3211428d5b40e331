package avr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-avr/internal/state"
)

const changeQueueSize = 64

// Bridge translates between one receiver's telnet protocol and the host
// state store. Connection events and host changes are handled one at a
// time on a single goroutine.
//
// Thread Safety: All exported methods are safe for concurrent use.
type Bridge struct {
	cfg     config.ReceiverConfig
	store   state.Store
	conn    *Conn
	session *session
	health  *HealthReporter
	metrics *Metrics
	forced  Dialect

	onConnection func(connected bool)

	changes chan state.StateChange

	status   Status
	statusMu sync.RWMutex

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger *syncLogger
}

// Status is a snapshot of the receiver link.
type Status struct {
	State        ConnState `json:"state"`
	Address      string    `json:"address"`
	Dialect      string    `json:"dialect"`
	Zones        []int     `json:"zones,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the receiver section of the loaded configuration.
	Config config.ReceiverConfig

	// Store is the host state store.
	Store state.Store

	// Logger is optional structured logger.
	Logger Logger

	// Metrics is optional; nil records nothing.
	Metrics *Metrics

	// HealthPublisher enables the MQTT health topic when set.
	HealthPublisher HealthPublisher

	// BridgeID and Version label health messages.
	BridgeID string
	Version  string

	// OnConnectionChange is called from the bridge goroutine whenever the
	// receiver link goes up or down.
	OnConnectionChange func(connected bool)

	// Dialer overrides the telnet dialer.
	Dialer Dialer
}

// NewBridge creates a bridge. Call Start to connect.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if opts.Config.Host == "" {
		return nil, fmt.Errorf("receiver host is required")
	}
	forced, err := ParseDialect(opts.Config.Dialect)
	if err != nil {
		return nil, err
	}

	logger := newSyncLogger(opts.Logger)
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:          opts.Config,
		store:        opts.Store,
		metrics:      opts.Metrics,
		forced:       forced,
		onConnection: opts.OnConnectionChange,
		changes:      make(chan state.StateChange, changeQueueSize),
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    cancel,
		logger:       logger,
	}
	b.session = newSession(opts.Store, logger)
	b.conn = NewConn(ConnOptions{
		Address:        opts.Config.Address(),
		ConnectTimeout: opts.Config.GetConnectTimeout(),
		IdleTimeout:    opts.Config.GetIdleTimeout(),
		ReconnectDelay: opts.Config.GetReconnectDelay(),
		PollInterval:   opts.Config.GetPollInterval(),
		CommandDelay:   opts.Config.GetCommandDelay(),
		Dialer:         opts.Dialer,
		Logger:         logger,
		Metrics:        opts.Metrics,
	})
	b.status.Address = opts.Config.Address()
	b.status.Dialect = DialectUnknown.String()

	if opts.HealthPublisher != nil {
		b.health = NewHealthReporter(HealthReporterConfig{
			BridgeID:  opts.BridgeID,
			Version:   opts.Version,
			Publisher: opts.HealthPublisher,
			Source:    b,
		})
		b.health.SetLogger(logger)
	}
	return b, nil
}

// SetLogger replaces the logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger.set(logger)
}

// Start materializes the common states, restores the response filter,
// fixes a configured dialect and starts connecting.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		err = b.start(ctx)
	})
	return err
}

func (b *Bridge) start(ctx context.Context) error {
	s := b.session
	if err := s.materializeCommon(ctx); err != nil {
		return fmt.Errorf("creating common states: %w", err)
	}
	if err := s.write(ctx, FuncConnection, 0, false); err != nil {
		return fmt.Errorf("resetting connection state: %w", err)
	}
	b.restoreReadingPattern(ctx)

	if b.forced != DialectUnknown {
		if err := s.classify(ctx, b.forced); err != nil {
			return fmt.Errorf("materializing configured dialect: %w", err)
		}
		b.logger.Info("dialect fixed by configuration", "dialect", b.forced.String())
		b.refreshStatus()
	}

	if b.health != nil {
		b.health.Start(b.ctx)
	}
	if err := b.conn.Open(ctx); err != nil {
		return err
	}

	b.wg.Add(1)
	go b.run()

	b.logger.Info("avr bridge started", "address", b.cfg.Address())
	return nil
}

// Stop shuts the bridge down: the loop exits, the socket closes, timers
// stop and queued commands are dropped. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		close(b.done)
		b.wg.Wait()
		b.conn.Close() //nolint:errcheck // always nil

		if err := b.session.write(context.Background(), FuncConnection, 0, false); err != nil {
			b.logger.Debug("final connection state not written", "error", err)
		}
		if b.health != nil {
			b.health.Stop()
		}
		b.logger.Info("avr bridge stopped")
	})
}

// Submit hands a host state change to the bridge goroutine.
func (b *Bridge) Submit(change state.StateChange) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.changes <- change:
		return nil
	case <-b.done:
		return ErrClosed
	}
}

// Status returns a snapshot of the receiver link.
func (b *Bridge) Status() Status {
	b.statusMu.RLock()
	st := b.status
	st.Zones = append([]int(nil), b.status.Zones...)
	st.Capabilities = append([]string(nil), b.status.Capabilities...)
	b.statusMu.RUnlock()
	st.State = b.conn.State()
	return st
}

func (b *Bridge) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev := <-b.conn.Events():
			b.handleEvent(b.ctx, ev)
		case change := <-b.changes:
			b.handleChange(b.ctx, change)
		}
	}
}

func (b *Bridge) handleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventConnected:
		b.handleConnected(ctx)
	case EventLine:
		b.handleLine(ctx, ev.Line)
	case EventDisconnected:
		b.setConnection(ctx, false)
	}
}

func (b *Bridge) handleConnected(ctx context.Context) {
	b.setConnection(ctx, true)

	if b.session.classified() {
		if err := b.conn.Resume(ctx); err != nil {
			b.logger.Debug("resume rejected", "error", err)
		}
		b.startPolling()
		return
	}
	if err := b.conn.Detect(ctx); err != nil {
		b.logger.Debug("detect rejected", "error", err)
	}
	b.logger.Debug("probing receiver type", "commands", probeCommands)
	b.conn.Send(probeCommands...)
}

func (b *Bridge) handleLine(ctx context.Context, line string) {
	s := b.session

	if s.diag != nil && s.diag.MatchString(line) {
		if err := s.write(ctx, FuncExpertReadingResult, 0, line); err != nil {
			b.logger.Warn("storing filtered response failed", "error", err)
		}
	}

	if !s.classified() {
		d := Classify(line)
		if d == DialectUnknown {
			b.logger.Debug("discarding line before receiver type is known", "line", printable(line))
			return
		}
		if err := s.classify(ctx, d); err != nil {
			b.logger.Error("schema materialization failed", "dialect", d.String(), "error", err)
			return
		}
		b.logger.Info("receiver type detected", "dialect", d.String(), "line", printable(line))
		if err := b.conn.Classified(ctx); err != nil {
			b.logger.Debug("classified rejected", "error", err)
		}
		b.startPolling()
	}

	if err := s.decode(ctx, line); err != nil {
		if errors.Is(err, errUnmatched) {
			b.logger.Debug("unrecognized response", "line", printable(line))
		} else {
			b.metrics.decodeError(s.dialect)
			b.logger.Error("decoding response failed", "line", printable(line), "error", err)
		}
	}
	b.refreshStatus()
}

func (b *Bridge) handleChange(ctx context.Context, change state.StateChange) {
	if change.Ack {
		return
	}
	s := b.session

	bnd, bound := s.bindings[change.ID]
	if bound && bnd.Func == FuncExpertReadingPattern {
		b.setReadingPattern(ctx, bnd, change.Value)
		return
	}

	cmds, err := s.encode(ctx, change)
	if err != nil {
		b.metrics.encodeError(s.dialect)
		if errors.Is(err, ErrUnmappedState) {
			b.logger.Error("dropping unmapped state change", "id", change.ID, "error", err)
		} else {
			b.logger.Warn("dropping state change", "id", change.ID, "value", change.Value, "error", err)
		}
		return
	}
	if len(cmds) == 0 {
		return
	}
	b.logger.Debug("dispatching state change", "id", change.ID, "commands", cmds)
	b.conn.Send(cmds...)

	if bound && bnd.Func == FuncExpertCommand && b.conn.linkUp() {
		if err := s.store.SetState(ctx, bnd.Path, change.Value, true); err != nil {
			b.logger.Warn("acknowledging raw command failed", "error", err)
		}
	}
}

// setReadingPattern installs the response filter. An invalid pattern is
// written back unacknowledged and disables the filter.
func (b *Bridge) setReadingPattern(ctx context.Context, bnd *Binding, val any) {
	s := b.session
	pattern := text(val)
	if pattern == "" {
		s.diag = nil
		if err := s.store.SetState(ctx, bnd.Path, "", true); err != nil {
			b.logger.Warn("clearing response filter failed", "error", err)
		}
		return
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		s.diag = nil
		b.logger.Warn("invalid response filter pattern", "pattern", pattern, "error", err)
		if werr := s.store.SetState(ctx, bnd.Path, pattern, false); werr != nil {
			b.logger.Warn("storing response filter failed", "error", werr)
		}
		return
	}
	s.diag = re
	if err := s.store.SetState(ctx, bnd.Path, pattern, true); err != nil {
		b.logger.Warn("storing response filter failed", "error", err)
	}
}

func (b *Bridge) restoreReadingPattern(ctx context.Context) {
	bnd, ok := b.session.binding(FuncExpertReadingPattern, 0, 0)
	if !ok {
		return
	}
	st, found, err := b.store.GetState(ctx, bnd.Path)
	if err != nil || !found || !st.Ack {
		return
	}
	if pattern := text(st.Val); pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil {
			b.session.diag = re
		}
	}
}

func (b *Bridge) startPolling() {
	cat := b.session.catalog
	b.conn.SetPollCommands(cat.Poll)
	b.conn.Send(cat.Update...)
}

func (b *Bridge) setConnection(ctx context.Context, connected bool) {
	if err := b.session.write(ctx, FuncConnection, 0, connected); err != nil {
		b.logger.Warn("storing connection state failed", "error", err)
	}
	if b.onConnection != nil {
		b.onConnection(connected)
	}
	if b.health != nil {
		if err := b.health.PublishNow(); err != nil {
			b.logger.Debug("health publish failed", "error", err)
		}
	}
}

// refreshStatus copies session facts into the status snapshot.
func (b *Bridge) refreshStatus() {
	s := b.session
	zones := make([]int, 0, len(s.zones))
	for z := range s.zones {
		zones = append(zones, z)
	}
	sort.Ints(zones)
	caps := make([]string, 0, len(s.caps))
	for c := range s.caps {
		caps = append(caps, c.String())
	}
	sort.Strings(caps)

	b.statusMu.Lock()
	b.status.Dialect = s.dialect.String()
	b.status.Zones = zones
	b.status.Capabilities = caps
	b.statusMu.Unlock()
}
