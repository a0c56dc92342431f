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
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinycursor/pkg/partition"
	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const namespaceIndexDegree = 32

type namespaceItem string

func (n namespaceItem) Less(than btree.Item) bool {
	return n < than.(namespaceItem)
}

// Directory holds the global Manager and one Manager per namespace.
type Directory struct {
	global *Manager
	opts   []ManagerOption

	managers *partition.Registry[string, *Manager]

	// mu guards namespace creation and removal, and index.
	mu    sync.RWMutex
	index *btree.BTree
}

// NewDirectory creates a Directory. opts apply to every Manager it
// creates.
func NewDirectory(opts ...ManagerOption) *Directory {
	return &Directory{
		global:   NewManager("", opts...),
		opts:     opts,
		managers: partition.New[string, *Manager](0, partition.StringHash[string]),
		index:    btree.New(namespaceIndexDegree),
	}
}

// Global returns the manager of cursors not bound to a namespace.
func (d *Directory) Global() *Manager {
	return d.global
}

// Get returns the manager of ns, or nil.
func (d *Directory) Get(ns string) *Manager {
	if ns == "" {
		return d.global
	}
	m, _ := d.managers.Get(ns)
	return m
}

// GetOrCreate returns the manager of ns, creating it if needed.
func (d *Directory) GetOrCreate(ns string) *Manager {
	if m := d.Get(ns); m != nil {
		return m
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.managers.Get(ns); ok {
		return m
	}
	m := NewManager(ns, d.opts...)
	d.managers.Insert(ns, m)
	d.index.ReplaceOrInsert(namespaceItem(ns))
	return m
}

// Namespaces returns the namespaces with a manager, in order.
func (d *Directory) Namespaces() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	namespaces := make([]string, 0, d.index.Len())
	d.index.Ascend(func(i btree.Item) bool {
		namespaces = append(namespaces, string(i.(namespaceItem)))
		return true
	})
	return namespaces
}

func (d *Directory) managersSnapshot() []*Manager {
	d.mu.RLock()
	defer d.mu.RUnlock()
	managers := make([]*Manager, 0, d.index.Len()+1)
	managers = append(managers, d.global)
	d.index.Ascend(func(i btree.Item) bool {
		if m, ok := d.managers.Get(string(i.(namespaceItem))); ok {
			managers = append(managers, m)
		}
		return true
	})
	return managers
}

// Drop destroys every cursor of ns and forgets its manager. Lookups of ns
// made after Drop returns create a new, empty manager.
func (d *Directory) Drop(op *Operation, ns string, reason string) bool {
	d.mu.Lock()
	m, ok := d.managers.Get(ns)
	if ok {
		d.managers.Erase(ns)
		d.index.Delete(namespaceItem(ns))
	}
	d.mu.Unlock()
	if !ok {
		return false
	}

	// The manager is unreachable now, so op has it exclusively.
	op.MarkExclusive(ns)
	m.InvalidateAll(op, true, reason)
	op.UnmarkExclusive(ns)
	log.Info("dropped cursor namespace", zap.String("ns", ns), zap.String("reason", reason))
	return true
}

// DropDatabase drops every namespace of db and returns them.
func (d *Directory) DropDatabase(op *Operation, db string, reason string) []string {
	prefix := db + "."
	var namespaces []string
	d.mu.RLock()
	d.index.AscendGreaterOrEqual(namespaceItem(prefix), func(i btree.Item) bool {
		ns := string(i.(namespaceItem))
		if !strings.HasPrefix(ns, prefix) {
			return false
		}
		namespaces = append(namespaces, ns)
		return true
	})
	d.mu.RUnlock()

	dropped := namespaces[:0]
	for _, ns := range namespaces {
		if d.Drop(op, ns, reason) {
			dropped = append(dropped, ns)
		}
	}
	return dropped
}

// Invalidate kills every cursor of ns without dropping it. The caller must
// hold exclusive access to ns.
func (d *Directory) Invalidate(op *Operation, ns string, reason string) bool {
	m := d.Get(ns)
	if m == nil || m.IsGlobal() {
		return false
	}
	m.InvalidateAll(op, false, reason)
	return true
}

// TimeoutCursors times out cursors of every manager.
func (d *Directory) TimeoutCursors(op *Operation, now time.Time) int {
	total := 0
	for _, m := range d.managersSnapshot() {
		total += m.TimeoutCursors(op, now)
	}
	return total
}

func (d *Directory) managerForCursor(id ID) *Manager {
	for _, m := range d.managersSnapshot() {
		if m.OwnsCursorID(id) {
			return m
		}
	}
	return nil
}

// KillCursor kills the cursor wherever it is registered. With checkAuth a
// caller that may not kill it is audited and nothing is killed.
func (d *Directory) KillCursor(op *Operation, id ID, checkAuth bool) bool {
	m := d.managerForCursor(id)
	if m == nil {
		if checkAuth {
			d.global.audit(op.Users(), id, audit.CodeCursorNotFound)
		}
		return false
	}
	if checkAuth {
		return m.KillCursorChecked(op, id) == nil
	}
	return m.KillCursor(op, id, false) == nil
}

// AuditKill records a kill attempt on ns that never reached a manager,
// for example because ns has none.
func (d *Directory) AuditKill(op *Operation, ns string, id ID, code audit.Code) {
	if d.global.auditor != nil {
		d.global.auditor.LogKillCursors(op.Users(), ns, int64(id), code)
	}
}

// KillCursors kills each id and returns how many were killed.
func (d *Directory) KillCursors(op *Operation, ids []ID) int {
	killed := 0
	for _, id := range ids {
		if d.KillCursor(op, id, true) {
			killed++
		}
	}
	return killed
}

// KillCursorsWithMatchingSessions kills every cursor opened in a session
// for which match returns true. It returns the number killed.
func (d *Directory) KillCursorsWithMatchingSessions(op *Operation, match func(session.ID) bool) int {
	killed := 0
	for _, m := range d.managersSnapshot() {
		sessions := make(session.Set)
		m.AppendActiveSessions(sessions)
		for sid := range sessions {
			if !match(sid) {
				continue
			}
			for id := range m.GetCursorsForSession(sid) {
				if err := m.KillCursor(op, id, true); err == nil {
					killed++
				}
			}
		}
	}
	return killed
}

// AppendActiveSessions adds every session with a live cursor to set.
func (d *Directory) AppendActiveSessions(set session.Set) {
	for _, m := range d.managersSnapshot() {
		m.AppendActiveSessions(set)
	}
}

// ActiveCursors describes every cursor of every manager.
func (d *Directory) ActiveCursors() []*Info {
	var infos []*Info
	for _, m := range d.managersSnapshot() {
		infos = append(infos, m.ActiveCursors()...)
	}
	return infos
}

// CursorInfo describes the cursor wherever it is registered.
func (d *Directory) CursorInfo(id ID) (*Info, error) {
	m := d.managerForCursor(id)
	if m == nil {
		return nil, errors.WithStack(&NotFoundErr{CursorID: id})
	}
	return m.CursorInfo(id)
}

// NumCursors sums the cursor counts of every manager.
func (d *Directory) NumCursors() int {
	total := 0
	for _, m := range d.managersSnapshot() {
		total += m.NumCursors()
	}
	return total
}

// Close checks that every manager is empty.
func (d *Directory) Close() {
	for _, m := range d.managersSnapshot() {
		m.Close()
	}
}
