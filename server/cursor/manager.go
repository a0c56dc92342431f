// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package cursor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinycursor/pkg/partition"
	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultCursorTimeout is how long an unpinned cursor may stay idle.
const DefaultCursorTimeout = 10 * time.Minute

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPartitions sets the registry partition count.
func WithPartitions(n int) ManagerOption {
	return func(m *Manager) { m.partitions = n }
}

// WithIDAllocAttempts bounds id allocation attempts.
func WithIDAllocAttempts(n int) ManagerOption {
	return func(m *Manager) { m.idAllocAttempts = n }
}

// WithCursorTimeout sets the idle timeout.
func WithCursorTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithSessionCache sets the session liveness collaborator.
func WithSessionCache(sessions SessionCache) ManagerOption {
	return func(m *Manager) { m.sessions = sessions }
}

// WithAuditor sets where kill attempts are audited.
func WithAuditor(auditor Auditor) ManagerOption {
	return func(m *Manager) { m.auditor = auditor }
}

// WithAuthorizer sets the authorization collaborator.
func WithAuthorizer(authorizer Authorizer) ManagerOption {
	return func(m *Manager) { m.authorizer = authorizer }
}

// WithRandSource makes id allocation deterministic. The source is used by
// a single manager only, so it must not be shared through a Directory.
func WithRandSource(src rand.Source) ManagerOption {
	return func(m *Manager) { m.randSource = src }
}

// Manager owns the cursors of one namespace, or the global cursors when
// its namespace is empty.
type Manager struct {
	ns      string
	cursors *partition.Registry[ID, *Cursor]

	// registrationMu serializes id allocation with insertion so that two
	// registrations can not pick the same free id.
	registrationMu sync.Mutex
	allocator      *IDAllocator

	partitions      int
	idAllocAttempts int
	randSource      rand.Source
	timeout         time.Duration
	now             func() time.Time
	sessions        SessionCache
	auditor         Auditor
	authorizer      Authorizer
}

// NewManager creates the Manager of ns. An empty ns creates a global
// manager.
func NewManager(ns string, opts ...ManagerOption) *Manager {
	m := &Manager{
		ns:      ns,
		timeout: DefaultCursorTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.authorizer == nil {
		m.authorizer = auth.NewChecker(false)
	}
	m.cursors = partition.New[ID, *Cursor](m.partitions, partition.IdentityHash[ID])
	m.allocator = NewIDAllocator(m.randSource, m.idAllocAttempts)
	return m
}

// Namespace returns the namespace of the manager, empty for the global one.
func (m *Manager) Namespace() string {
	return m.ns
}

// IsGlobal reports whether the manager is not bound to a namespace.
func (m *Manager) IsGlobal() bool {
	return m.ns == ""
}

// Timeout returns the idle timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// RegisterCursor registers a new cursor and returns it pinned by op.
func (m *Manager) RegisterCursor(op *Operation, params Params) *Pin {
	if params.Executor == nil {
		log.Fatal("registering a cursor without an executor", zap.String("ns", m.ns))
	}
	if params.Namespace == "" {
		params.Namespace = m.ns
	}
	now := m.now()

	m.registrationMu.Lock()
	id := m.allocator.Allocate(m.cursors.Contains)
	c := newCursor(id, params, now)
	c.pinnedBy = op
	c.pinGeneration = 1
	// The registration lock excludes other inserts, so the id is still free.
	m.cursors.Insert(id, c)
	m.registrationMu.Unlock()

	cursorEventCounter.WithLabelValues("register").Inc()
	cursorPinnedGauge.Inc()
	log.Debug("cursor registered",
		zap.String("ns", params.Namespace),
		zap.Int64("cursor-id", int64(id)),
		zap.Uint64("op-id", op.ID()))
	return &Pin{manager: m, cursor: c, op: op, generation: 1}
}

// PinCursor gives op exclusive use of the cursor. A cursor that was killed
// while idle is destroyed here and reported as KilledErr. With
// checkSession the caller's session must match the cursor's.
func (m *Manager) PinCursor(op *Operation, id ID, checkSession bool) (*Pin, error) {
	p := m.cursors.LockPartition(id)
	c, ok := p.Get(id)
	if !ok {
		p.Unlock()
		return nil, errors.WithStack(&NotFoundErr{CursorID: id})
	}
	if c.pinnedBy != nil {
		p.Unlock()
		return nil, errors.WithStack(&InUseErr{CursorID: id})
	}
	if c.killStatus != nil {
		reason := c.killStatus.Error()
		p.Erase(id)
		p.Unlock()
		c.dispose(op)
		return nil, errors.WithStack(&KilledErr{CursorID: id, Reason: reason})
	}
	if checkSession {
		if err := m.authorizer.CheckSessionPrivilege(op.Principal(), c.sessionID); err != nil {
			p.Unlock()
			return nil, errors.WithStack(&UnauthorizedErr{CursorID: id, Err: err})
		}
	}
	c.pinnedBy = op
	c.pinGeneration++
	generation := c.pinGeneration
	sessionID := c.sessionID
	p.Unlock()

	if sessionID != nil && m.sessions != nil {
		m.sessions.Vivify(*sessionID)
	}
	cursorEventCounter.WithLabelValues("pin").Inc()
	cursorPinnedGauge.Inc()
	return &Pin{manager: m, cursor: c, op: op, generation: generation}, nil
}

// checkPinned requires the partition lock.
func (m *Manager) checkPinned(p *partition.Locked[ID, *Cursor], op *Operation, c *Cursor, generation uint64) {
	if c.pinnedBy != op || c.pinGeneration != generation {
		p.Unlock()
		log.Fatal("cursor is not pinned by the releasing operation",
			zap.String("ns", c.ns),
			zap.Int64("cursor-id", int64(c.id)),
			zap.Uint64("op-id", op.ID()),
			zap.Uint64("generation", generation))
	}
}

// registered requires the partition lock.
func registered(p *partition.Locked[ID, *Cursor], c *Cursor) bool {
	cur, ok := p.Get(c.id)
	return ok && cur == c
}

func (m *Manager) unpin(op *Operation, c *Cursor, generation uint64) {
	now := m.now()

	p := m.cursors.LockPartition(c.id)
	m.checkPinned(p, op, c, generation)
	// KillCursor interrupts the holder under this same lock.
	interrupt := op.CheckForInterrupt()
	c.pinnedBy = nil
	c.lastUsed = now
	cursorPinnedGauge.Dec()
	cursorEventCounter.WithLabelValues("unpin").Inc()

	if !registered(p, c) {
		// Invalidated while pinned.
		p.Unlock()
		c.dispose(op)
		return
	}
	if interrupt != nil && isKillInterrupt(interrupt) {
		p.Erase(c.id)
		p.Unlock()
		log.Info("removing cursor after completing batch",
			zap.String("ns", c.ns),
			zap.Int64("cursor-id", int64(c.id)),
			zap.Error(interrupt))
		c.dispose(op)
		return
	}
	if interrupt != nil {
		c.markAsKilled(interrupt)
	}
	p.Unlock()
}

func (m *Manager) deregisterAndDispose(op *Operation, c *Cursor, generation uint64) {
	p := m.cursors.LockPartition(c.id)
	m.checkPinned(p, op, c, generation)
	c.pinnedBy = nil
	cursorPinnedGauge.Dec()
	if registered(p, c) {
		p.Erase(c.id)
	}
	p.Unlock()
	c.dispose(op)
}

func (m *Manager) killStatus(c *Cursor) error {
	p := m.cursors.LockPartition(c.id)
	defer p.Unlock()
	return c.killStatus
}

func (m *Manager) audit(users auth.UserSet, id ID, code audit.Code) {
	if m.auditor != nil {
		m.auditor.LogKillCursors(users, m.ns, int64(id), code)
	}
}

// KillCursor kills the cursor. An idle cursor is destroyed right away; a
// pinned cursor has its operation interrupted and is destroyed when the
// pin is released.
func (m *Manager) KillCursor(op *Operation, id ID, shouldAudit bool) error {
	p := m.cursors.LockPartition(id)
	c, ok := p.Get(id)
	if !ok {
		p.Unlock()
		if shouldAudit {
			m.audit(op.Users(), id, audit.CodeCursorNotFound)
		}
		return errors.WithStack(&NotFoundErr{CursorID: id})
	}
	if c.pinnedBy != nil {
		// Kill under the lock so the holder can not release in between.
		c.pinnedBy.Kill(ErrCursorKilled)
		p.Unlock()
		if shouldAudit {
			m.audit(op.Users(), id, audit.CodeOK)
		}
		cursorEventCounter.WithLabelValues("kill").Inc()
		return nil
	}
	p.Erase(id)
	p.Unlock()
	if shouldAudit {
		m.audit(op.Users(), id, audit.CodeOK)
	}
	cursorEventCounter.WithLabelValues("kill").Inc()
	c.dispose(op)
	return nil
}

// EraseCursor destroys an idle cursor. Unlike KillCursor it refuses to
// touch a pinned cursor.
func (m *Manager) EraseCursor(op *Operation, id ID, shouldAudit bool) error {
	p := m.cursors.LockPartition(id)
	c, ok := p.Get(id)
	if !ok {
		p.Unlock()
		if shouldAudit {
			m.audit(op.Users(), id, audit.CodeCursorNotFound)
		}
		return errors.WithStack(&NotFoundErr{CursorID: id})
	}
	if c.pinnedBy != nil {
		p.Unlock()
		if shouldAudit {
			m.audit(op.Users(), id, audit.CodeCursorInUse)
		}
		return errors.WithStack(&OperationFailedErr{CursorID: id})
	}
	p.Erase(id)
	p.Unlock()
	if shouldAudit {
		m.audit(op.Users(), id, audit.CodeOK)
	}
	c.dispose(op)
	return nil
}

func (m *Manager) shouldTimeout(c *Cursor, now time.Time) bool {
	return c.pinnedBy == nil && !c.noTimeout && now.Sub(c.lastUsed) >= m.timeout
}

// TimeoutCursors destroys every idle cursor unused since now minus the
// timeout and returns how many it destroyed.
func (m *Manager) TimeoutCursors(op *Operation, now time.Time) int {
	var expired []*Cursor
	for i := 0; i < m.cursors.NumPartitions(); i++ {
		p := m.cursors.LockPartitionByIndex(i)
		expired = append(expired, p.EraseIf(func(_ ID, c *Cursor) bool {
			return m.shouldTimeout(c, now)
		})...)
		p.Unlock()
	}
	for _, c := range expired {
		log.Info("cursor timed out",
			zap.String("ns", c.ns),
			zap.Int64("cursor-id", int64(c.id)),
			zap.Duration("idle", now.Sub(c.lastUsed)))
		c.dispose(op)
	}
	cursorEventCounter.WithLabelValues("timeout").Add(float64(len(expired)))
	return len(expired)
}

// InvalidateAll kills every cursor of the namespace. The caller must hold
// exclusive access to the namespace. Pinned cursors are deregistered now
// and destroyed by their pin holder. Idle cursors are destroyed if the
// namespace is going away, otherwise kept so that the next PinCursor
// reports reason.
func (m *Manager) InvalidateAll(op *Operation, collectionGoingAway bool, reason string) {
	if m.IsGlobal() {
		log.Fatal("invalidating the global cursor manager")
	}
	if !op.HoldsExclusive(m.ns) {
		log.Fatal("invalidating cursors without exclusive access", zap.String("ns", m.ns))
	}
	status := errors.New(reason)

	all := m.cursors.LockAll()
	var toDispose []*Cursor
	total := all.Len()
	all.EraseIf(func(_ ID, c *Cursor) bool {
		c.markAsKilled(status)
		if c.pinnedBy != nil {
			return true
		}
		if collectionGoingAway {
			toDispose = append(toDispose, c)
			return true
		}
		return false
	})
	all.Unlock()

	for _, c := range toDispose {
		c.dispose(op)
	}
	cursorInvalidatedCounter.WithLabelValues(boolLabel(collectionGoingAway)).Add(float64(total))
	log.Info("invalidated cursors",
		zap.String("ns", m.ns),
		zap.Int("cursors", total),
		zap.Bool("going-away", collectionGoingAway),
		zap.String("reason", reason))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GetCursorsForSession returns the ids of the cursors opened in sid.
func (m *Manager) GetCursorsForSession(sid session.ID) map[ID]struct{} {
	ids := make(map[ID]struct{})
	all := m.cursors.LockAll()
	all.Range(func(id ID, c *Cursor) bool {
		if c.sessionID != nil && *c.sessionID == sid {
			ids[id] = struct{}{}
		}
		return true
	})
	all.Unlock()
	return ids
}

// AppendActiveSessions adds the session of every cursor to set.
func (m *Manager) AppendActiveSessions(set session.Set) {
	all := m.cursors.LockAll()
	all.Range(func(_ ID, c *Cursor) bool {
		if c.sessionID != nil {
			set.Add(*c.sessionID)
		}
		return true
	})
	all.Unlock()
}

// ActiveCursors describes every registered cursor.
func (m *Manager) ActiveCursors() []*Info {
	all := m.cursors.LockAll()
	infos := make([]*Info, 0, all.Len())
	all.Range(func(_ ID, c *Cursor) bool {
		infos = append(infos, c.info())
		return true
	})
	all.Unlock()
	return infos
}

// CursorInfo describes one cursor.
func (m *Manager) CursorInfo(id ID) (*Info, error) {
	p := m.cursors.LockPartition(id)
	defer p.Unlock()
	c, ok := p.Get(id)
	if !ok {
		return nil, errors.WithStack(&NotFoundErr{CursorID: id})
	}
	return c.info(), nil
}

// NumCursors returns the number of registered cursors. It is not a
// snapshot: concurrent registrations may or may not be counted.
func (m *Manager) NumCursors() int {
	return m.cursors.Size()
}

// OwnsCursorID reports whether id is registered here.
func (m *Manager) OwnsCursorID(id ID) bool {
	return m.cursors.Contains(id)
}

// CheckAuthForKill checks that op may kill the cursor.
func (m *Manager) CheckAuthForKill(op *Operation, id ID) error {
	p := m.cursors.LockPartition(id)
	c, ok := p.Get(id)
	p.Unlock()
	if !ok {
		return errors.WithStack(&NotFoundErr{CursorID: id})
	}
	if err := m.authorizer.CheckAuthForKillCursors(op.Principal(), c.ns, c.users); err != nil {
		return errors.WithStack(&UnauthorizedErr{CursorID: id, Err: err})
	}
	return nil
}

// KillCursorChecked kills the cursor if op may do so. The attempt is
// audited either way.
func (m *Manager) KillCursorChecked(op *Operation, id ID) error {
	if err := m.CheckAuthForKill(op, id); err != nil {
		code := audit.CodeCursorNotFound
		if IsUnauthorized(err) {
			code = audit.CodeUnauthorized
		}
		m.audit(op.Users(), id, code)
		return err
	}
	return m.KillCursor(op, id, true)
}

// Close checks that every cursor has been destroyed.
func (m *Manager) Close() {
	if n := m.cursors.Size(); n != 0 {
		log.Fatal("closing cursor manager with live cursors", zap.String("ns", m.ns), zap.Int("cursors", n))
	}
}
