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
	"context"
	"sync"

	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

var operationIDGen = atomic.NewUint64(0)

// Operation is one client operation. It carries the caller's identity and
// a cancellation signal. Killing an Operation is cooperative: Kill records
// the cause and the operation notices it at its next CheckForInterrupt.
type Operation struct {
	id        uint64
	ctx       context.Context
	cancel    context.CancelCauseFunc
	principal *auth.Principal
	killed    atomic.Bool

	mu        sync.Mutex
	killCause error
	exclusive map[string]struct{}
}

// NewOperation starts an operation on behalf of principal. A nil principal
// is an unauthenticated caller outside any session. Cancelling ctx or
// reaching its deadline interrupts the operation.
func NewOperation(ctx context.Context, principal *auth.Principal) *Operation {
	if principal == nil {
		principal = &auth.Principal{}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	return &Operation{
		id:        operationIDGen.Inc(),
		ctx:       ctx,
		cancel:    cancel,
		principal: principal,
		exclusive: make(map[string]struct{}),
	}
}

// ID returns the process unique id of the operation.
func (op *Operation) ID() uint64 {
	return op.id
}

// Context returns the context of the operation. It is done once the
// operation has been killed.
func (op *Operation) Context() context.Context {
	return op.ctx
}

// Principal returns the caller.
func (op *Operation) Principal() *auth.Principal {
	return op.principal
}

// Users returns the authenticated users of the caller.
func (op *Operation) Users() auth.UserSet {
	return op.principal.Users
}

// SessionID returns the caller's session, or nil.
func (op *Operation) SessionID() *session.ID {
	return op.principal.SessionID
}

// Kill interrupts the operation with cause. Only the first cause is kept,
// and it is kept even after Finish. A nil cause is ErrInterrupted.
func (op *Operation) Kill(cause error) {
	if cause == nil {
		cause = ErrInterrupted
	}
	op.mu.Lock()
	if op.killCause == nil {
		op.killCause = cause
	}
	op.mu.Unlock()
	op.killed.Store(true)
	op.cancel(cause)
}

// IsKilled reports whether Kill has been called.
func (op *Operation) IsKilled() bool {
	return op.killed.Load()
}

// CheckForInterrupt returns the pending interrupt, or nil. A Kill cause
// wins over the state of the context. Otherwise an operation whose parent
// context expired reports ErrExceededTimeLimit, one whose parent context
// was cancelled reports ErrInterrupted.
func (op *Operation) CheckForInterrupt() error {
	op.mu.Lock()
	killCause := op.killCause
	op.mu.Unlock()
	if killCause != nil {
		return errors.Cause(killCause)
	}

	select {
	case <-op.ctx.Done():
	default:
		return nil
	}
	cause := context.Cause(op.ctx)
	switch {
	case cause == context.DeadlineExceeded:
		return ErrExceededTimeLimit
	case cause == context.Canceled:
		return ErrInterrupted
	case cause == errOperationFinished:
		return nil
	}
	return errors.Cause(cause)
}

// Finish releases the resources of the operation. It is not an interrupt:
// pins still held are released normally afterwards.
func (op *Operation) Finish() {
	op.cancel(errOperationFinished)
}

var errOperationFinished = errors.New("operation finished")

// MarkExclusive records that the caller holds exclusive access to ns. The
// catalog layer takes that access; the cursor layer only checks it.
func (op *Operation) MarkExclusive(ns string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.exclusive[ns] = struct{}{}
}

// UnmarkExclusive forgets the exclusive access to ns.
func (op *Operation) UnmarkExclusive(ns string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	delete(op.exclusive, ns)
}

// HoldsExclusive reports whether the caller holds exclusive access to ns.
func (op *Operation) HoldsExclusive(ns string) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	_, ok := op.exclusive[ns]
	return ok
}
