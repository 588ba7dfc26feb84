package replication

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/protocol"
	"github.com/vovakirdan/cloudsync/internal/relation"
	"github.com/vovakirdan/cloudsync/internal/world"
)

// Options configures a Host.
type Options struct {
	World       config.WorldConfig
	Relation    config.RelationConfig
	Replication config.ReplicationConfig
	Seed        int64
	Autopilot   float64 // Horizontal anchor drift, units per second
	RunID       string  // Generated when empty

	Logger   *log.Logger      // Optional
	Recorder SessionRecorder  // Optional, can be nil
	Journal  Journal          // Optional, can be nil
	Now      func() time.Time // Defaults to time.Now
}

type sessionState struct {
	handle SessionHandle
	rec    SessionRecord
}

// Host is the authoritative participant. All world state is owned by the
// goroutine calling Tick (normally Run); other goroutines talk to it only
// through Send.
type Host struct {
	opts     Options
	logger   *log.Logger
	runID    string
	sim      *world.Simulator
	rel      *relation.Engine
	sessions *SessionRegistry

	inbox    chan HostMessage
	done     chan struct{}
	stopOnce sync.Once
	connSeq  atomic.Uint64
	saves    sync.WaitGroup

	// Tick goroutine only
	states        map[SessionID]*sessionState
	pending       []world.Event // Admin placements and removals waiting for this tick's broadcast
	anchor        core.Vec2
	tick          uint64
	syncAcc       float64
	syncInterval  float64
	sent, dropped uint64
	journalFailed bool

	statsMu sync.Mutex
	stats   Stats
}

// NewHost creates a host with an empty world.
func NewHost(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	interval := 0.1
	if opts.Replication.PositionSyncHz > 0 {
		interval = 1 / opts.Replication.PositionSyncHz
	}

	h := &Host{
		opts:         opts,
		logger:       opts.Logger,
		runID:        opts.RunID,
		sim:          world.NewSimulator(opts.World, opts.Seed),
		rel:          relation.NewEngine(opts.Relation),
		sessions:     NewSessionRegistry(),
		inbox:        make(chan HostMessage, 256),
		done:         make(chan struct{}),
		states:       make(map[SessionID]*sessionState),
		syncInterval: interval,
	}
	h.stats.RunID = h.runID
	return h
}

// RunID returns the identifier of this host's run.
func (h *Host) RunID() string {
	return h.runID
}

// NewSessionID allocates the next connection identifier.
func (h *Host) NewSessionID() SessionID {
	return SessionID(fmt.Sprintf("conn-%d", h.connSeq.Add(1)))
}

// NewSession allocates a channel session sized from the replication config.
func (h *Host) NewSession() *ChannelSession {
	return NewChannelSession(h.NewSessionID(), h.opts.Replication.SessionBuffer)
}

// Send queues a message for the next tick.
func (h *Host) Send(msg HostMessage) error {
	select {
	case <-h.done:
		return ErrHostStopped
	default:
	}
	select {
	case h.inbox <- msg:
		return nil
	case <-h.done:
		return ErrHostStopped
	}
}

// Connect queues a new observer.
func (h *Host) Connect(s SessionHandle) error {
	return h.Send(ConnectMsg{Session: s})
}

// Disconnect queues an observer's teardown.
func (h *Host) Disconnect(id SessionID) error {
	return h.Send(DisconnectMsg{SessionID: id})
}

// Stats returns the latest summary. Safe to call from any goroutine.
func (h *Host) Stats() Stats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.stats
}

// Run drives Tick at the configured rate until ctx is canceled or Stop is called.
func (h *Host) Run(ctx context.Context) error {
	hz := max(1, h.opts.Replication.TickHz)
	interval := time.Second / time.Duration(hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("host running", "run", h.runID, "tick_hz", hz, "seed", h.opts.Seed)
	dt := interval.Seconds()
	for {
		select {
		case <-ticker.C:
			h.Tick(dt)
		case <-ctx.Done():
			h.shutdown()
			return nil
		case <-h.done:
			h.shutdown()
			return nil
		}
	}
}

// Stop makes Run return and rejects further messages.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// shutdown releases every remaining observer and waits for ledger writes.
func (h *Host) shutdown() {
	h.Stop()
	for id := range h.states {
		h.disconnect(id, "host stopped")
	}
	h.saves.Wait()
	h.logger.Info("host stopped", "run", h.runID, "ticks", h.tick)
}

// Tick advances the authoritative state by dt seconds.
func (h *Host) Tick(dt float64) {
	h.drainInbox()

	h.anchor.X += h.opts.Autopilot * dt
	worldEvents := append(h.pending, h.sim.Tick(h.anchor, dt)...)
	h.pending = nil
	bridgeEvents := h.rel.Update(h.sim.Platforms())
	h.tick++

	h.broadcastEvents(worldEvents, bridgeEvents)

	h.syncAcc += dt
	if h.syncAcc >= h.syncInterval {
		h.syncAcc -= h.syncInterval
		if h.syncAcc >= h.syncInterval {
			h.syncAcc = 0 // Fell behind, don't burst
		}
		h.broadcast(h.syncPositions())
	}

	h.reapClosed()
	h.updateStats()
}

func (h *Host) drainInbox() {
	for {
		select {
		case msg := <-h.inbox:
			h.handleMessage(msg)
		default:
			return
		}
	}
}

func (h *Host) handleMessage(msg HostMessage) {
	switch m := msg.(type) {
	case ConnectMsg:
		h.connect(m.Session)
	case DisconnectMsg:
		h.disconnect(m.SessionID, "disconnected")
	case SetAnchorMsg:
		h.anchor = m.Pos
	case OccupyMsg:
		if !h.sim.SetOccupied(m.PlatformID, m.Occupied) {
			h.logger.Debug("occupy ignored", "platform", m.PlatformID)
		}
	case ProtectMsg:
		if !h.sim.Protect(m.PlatformID, m.Protected) {
			h.logger.Debug("protect ignored", "platform", m.PlatformID)
		}
	case ForceMsg:
		if m.Force {
			h.rel.Force(m.A, m.B)
		} else {
			h.rel.Unforce(m.A, m.B)
		}
	case PlaceMsg:
		_, evt := h.sim.Place(m.Variant, m.Pos, m.Scale, m.Velocity)
		h.pending = append(h.pending, evt)
	case RemoveMsg:
		if evt, ok := h.sim.Remove(m.PlatformID); ok {
			h.pending = append(h.pending, evt)
		}
	}
}

func (h *Host) connect(s SessionHandle) {
	id := s.ID()
	if _, exists := h.states[id]; exists {
		return
	}

	now := h.opts.Now()
	st := &sessionState{
		handle: s,
		rec:    SessionRecord{RunID: h.runID, ConnID: string(id), JoinedAt: now},
	}
	h.states[id] = st
	h.sessions.Register(s)

	h.unicast(st, h.welcome(id))
	snap := h.Snapshot()
	if h.unicast(st, snap) {
		st.rec.LastFullSync = now
	}

	h.logger.Info("observer joined", "conn", id, "platforms", len(snap.Platforms), "bridges", len(snap.Bridges))
}

func (h *Host) disconnect(id SessionID, reason string) {
	st, ok := h.states[id]
	if !ok {
		return
	}
	delete(h.states, id)
	h.sessions.Unregister(id)
	if c, ok := st.handle.(interface{ Close() }); ok {
		c.Close()
	}

	st.rec.LeftAt = h.opts.Now()
	h.logger.Info("observer left", "conn", id, "reason", reason, "sent", st.rec.Sent, "dropped", st.rec.Dropped)

	if h.opts.Recorder != nil {
		rec := st.rec
		h.saves.Add(1)
		// Best effort save, don't block the tick on error
		go func() {
			defer h.saves.Done()
			if err := h.opts.Recorder.SaveSession(rec); err != nil {
				h.logger.Warn("cannot record session", "conn", rec.ConnID, "err", err)
			}
		}()
	}
}

// reapClosed tears down sessions whose transport has gone away.
func (h *Host) reapClosed() {
	for id, st := range h.states {
		select {
		case <-st.handle.Done():
			h.disconnect(id, "session closed")
		default:
		}
	}
}

// welcome builds the greeting for a new connection.
func (h *Host) welcome(id SessionID) protocol.Welcome {
	variants := h.sim.Variants()
	infos := make([]protocol.VariantInfo, len(variants))
	for i, v := range variants {
		infos[i] = protocol.VariantInfo{
			Name:      v.Name,
			Width:     float32(v.Size.X),
			Height:    float32(v.Size.Y),
			NoBridges: v.NoBridges,
		}
	}
	return protocol.Welcome{
		ProtocolVersion:     protocol.Version,
		ConnID:              string(id),
		RunID:               h.runID,
		Variants:            infos,
		BridgeWidth:         float32(h.opts.Relation.BridgeWidth),
		CorrectionThreshold: float32(h.opts.Replication.CorrectionThreshold),
		Blend:               float32(h.opts.Replication.Blend),
	}
}

// Snapshot captures every live platform and bridge. Tick goroutine only.
func (h *Host) Snapshot() protocol.Snapshot {
	platforms := h.sim.Platforms()
	bridges := h.rel.Bridges()

	snap := protocol.Snapshot{
		Tick:      h.tick,
		Platforms: make([]protocol.PlatformState, len(platforms)),
		Bridges:   make([]protocol.BridgeState, len(bridges)),
	}
	for i, p := range platforms {
		snap.Platforms[i] = platformState(p.ID, p.Variant, p.Pos, p.Scale, p.Velocity)
	}
	for i, b := range bridges {
		snap.Bridges[i] = bridgeState(b.ID, b.LowerID, b.UpperID)
	}
	return snap
}

func (h *Host) syncPositions() protocol.SyncPositions {
	platforms := h.sim.Platforms()
	msg := protocol.SyncPositions{
		IDs:       make([]uint32, len(platforms)),
		Positions: make([]protocol.Vec, len(platforms)),
		Vels:      make([]float32, len(platforms)),
	}
	for i, p := range platforms {
		msg.IDs[i] = uint32(p.ID)
		msg.Positions[i] = protocol.VecFrom(p.Pos)
		msg.Vels[i] = float32(p.Velocity)
	}
	return msg
}

// broadcastEvents sends lifecycle messages in an order that never references
// a platform the observer does not have: platform spawns, bridge despawns,
// platform despawns, then bridge spawns.
func (h *Host) broadcastEvents(worldEvents []world.Event, bridgeEvents []relation.Event) {
	for _, e := range worldEvents {
		if c, ok := e.(world.PlatformCreated); ok {
			h.broadcast(protocol.SpawnPlatform{PlatformState: platformState(c.ID, c.Variant, c.Pos, c.Scale, c.Velocity)})
		}
	}
	for _, e := range bridgeEvents {
		if d, ok := e.(relation.BridgeDestroyed); ok {
			h.broadcast(protocol.DespawnBridge{BridgeID: uint32(d.ID)})
		}
	}
	for _, e := range worldEvents {
		switch ev := e.(type) {
		case world.PlatformDestroyed:
			h.logger.Debug("platform destroyed", "platform", ev.ID, "reason", ev.Reason)
			h.broadcast(protocol.DespawnPlatform{ID: uint32(ev.ID)})
		case world.PlatformDestroyCanceled:
			h.logger.Debug("platform destroy canceled", "platform", ev.ID)
		}
	}
	for _, e := range bridgeEvents {
		if c, ok := e.(relation.BridgeCreated); ok {
			h.broadcast(protocol.SpawnBridge{BridgeState: bridgeState(c.ID, c.LowerID, c.UpperID)})
		}
	}
}

func (h *Host) broadcast(msg protocol.Message) {
	if h.opts.Journal != nil {
		if err := h.opts.Journal.Append(h.tick, msg); err != nil && !h.journalFailed {
			h.journalFailed = true
			h.logger.Error("journal write failed, further errors suppressed", "err", err)
		}
	}
	for _, s := range h.sessions.All() {
		if st, ok := h.states[s.ID()]; ok {
			h.unicast(st, msg)
		}
	}
}

func (h *Host) unicast(st *sessionState, msg protocol.Message) bool {
	if st.handle.Send(msg) {
		st.rec.Sent++
		h.sent++
		return true
	}
	st.rec.Dropped++
	h.dropped++
	return false
}

func (h *Host) updateStats() {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	h.stats = Stats{
		RunID:     h.runID,
		Tick:      h.tick,
		Anchor:    h.anchor,
		Platforms: h.sim.Count(),
		Bridges:   h.rel.Count(),
		Sessions:  len(h.states),
		Sent:      h.sent,
		Dropped:   h.dropped,
	}
}

func platformState(id core.PlatformID, variant int, pos core.Vec2, scale, vel float64) protocol.PlatformState {
	return protocol.PlatformState{
		ID:      uint32(id),
		Variant: variant,
		Pos:     protocol.VecFrom(pos),
		Scale:   float32(scale),
		Vel:     float32(vel),
	}
}

func bridgeState(id core.BridgeID, lower, upper core.PlatformID) protocol.BridgeState {
	return protocol.BridgeState{BridgeID: uint32(id), LowerID: uint32(lower), UpperID: uint32(upper)}
}
