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
	"time"

	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ID identifies a cursor. Valid ids are positive; 0 means "no cursor".
type ID int64

// Executor is the query state a cursor resumes. Dispose is called exactly
// once, never while a registry lock is held.
type Executor interface {
	Dispose(op *Operation)
}

// Params describes a cursor to register.
type Params struct {
	Executor  Executor
	Namespace string
	// Users are the authenticated users that opened the cursor.
	Users     auth.UserSet
	SessionID *session.ID
	// NoTimeout exempts the cursor from idle timeout.
	NoTimeout bool
	// Originating is a description of the command that opened the cursor.
	Originating string
}

// Cursor is a registered, resumable query. Fields under "guarded" may only
// be touched while holding the registry partition of the cursor id.
type Cursor struct {
	id          ID
	ns          string
	exec        Executor
	users       auth.UserSet
	sessionID   *session.ID
	noTimeout   bool
	originating string
	created     time.Time

	// guarded
	lastUsed      time.Time
	pinnedBy      *Operation
	pinGeneration uint64
	killStatus    error

	nReturned atomic.Int64
	nBatches  atomic.Int64

	// only touched by the goroutine disposing the cursor
	disposed bool
}

func newCursor(id ID, params Params, now time.Time) *Cursor {
	return &Cursor{
		id:          id,
		ns:          params.Namespace,
		exec:        params.Executor,
		users:       params.Users,
		sessionID:   params.SessionID,
		noTimeout:   params.NoTimeout,
		originating: params.Originating,
		created:     now,
		lastUsed:    now,
	}
}

// ID returns the cursor id.
func (c *Cursor) ID() ID { return c.id }

// Namespace returns the namespace the cursor reads.
func (c *Cursor) Namespace() string { return c.ns }

// Executor returns the query state. Only the pin holder may use it.
func (c *Cursor) Executor() Executor { return c.exec }

// Users returns the users that opened the cursor.
func (c *Cursor) Users() auth.UserSet { return c.users }

// SessionID returns the session the cursor was opened in, or nil.
func (c *Cursor) SessionID() *session.ID { return c.sessionID }

// IsNoTimeout reports whether the cursor is exempt from idle timeout.
func (c *Cursor) IsNoTimeout() bool { return c.noTimeout }

// Originating returns the command that opened the cursor.
func (c *Cursor) Originating() string { return c.originating }

// Created returns the registration time.
func (c *Cursor) Created() time.Time { return c.created }

// AddReturned records n more documents returned in a batch.
func (c *Cursor) AddReturned(n int) {
	c.nReturned.Add(int64(n))
	c.nBatches.Inc()
}

// NReturned returns the number of documents returned so far.
func (c *Cursor) NReturned() int64 { return c.nReturned.Load() }

// NBatches returns the number of batches returned so far.
func (c *Cursor) NBatches() int64 { return c.nBatches.Load() }

// markAsKilled records the first kill status. Requires the partition lock.
func (c *Cursor) markAsKilled(status error) {
	if c.killStatus == nil {
		c.killStatus = status
	}
}

// dispose releases the executor. Must be called outside registry locks and
// at most once.
func (c *Cursor) dispose(op *Operation) {
	if c.disposed {
		log.Fatal("cursor disposed twice", zap.Int64("cursor-id", int64(c.id)), zap.String("ns", c.ns))
	}
	c.disposed = true
	c.exec.Dispose(op)
	cursorEventCounter.WithLabelValues("dispose").Inc()
}

// Info is a point in time description of a cursor.
type Info struct {
	ID          ID           `json:"id"`
	Namespace   string       `json:"ns"`
	Users       auth.UserSet `json:"users,omitempty"`
	SessionID   *session.ID  `json:"session_id,omitempty"`
	NoTimeout   bool         `json:"no_timeout"`
	Pinned      bool         `json:"pinned"`
	Killed      string       `json:"killed,omitempty"`
	Originating string       `json:"originating,omitempty"`
	Created     time.Time    `json:"created"`
	LastUsed    time.Time    `json:"last_used"`
	NReturned   int64        `json:"n_returned"`
	NBatches    int64        `json:"n_batches"`
}

// info requires the partition lock.
func (c *Cursor) info() *Info {
	i := &Info{
		ID:          c.id,
		Namespace:   c.ns,
		Users:       c.users,
		SessionID:   c.sessionID,
		NoTimeout:   c.noTimeout,
		Pinned:      c.pinnedBy != nil,
		Originating: c.originating,
		Created:     c.created,
		LastUsed:    c.lastUsed,
		NReturned:   c.nReturned.Load(),
		NBatches:    c.nBatches.Load(),
	}
	if c.killStatus != nil {
		i.Killed = c.killStatus.Error()
	}
	return i
}
