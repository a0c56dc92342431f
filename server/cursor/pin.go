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

// Pin is the exclusive right of one operation to use a cursor. A Pin is
// owned by a single goroutine. Release is idempotent, so the usual pattern
// is
//
//	pin, err := mgr.PinCursor(op, id, true)
//	if err != nil {
//		return err
//	}
//	defer pin.Release()
type Pin struct {
	manager    *Manager
	cursor     *Cursor
	op         *Operation
	generation uint64
}

// Cursor returns the pinned cursor, or nil once the pin has been released.
func (p *Pin) Cursor() *Cursor {
	return p.cursor
}

// Operation returns the operation holding the pin.
func (p *Pin) Operation() *Operation {
	return p.op
}

// Released reports whether the pin no longer refers to a cursor.
func (p *Pin) Released() bool {
	return p.cursor == nil
}

// KillStatus returns why the cursor was killed while pinned, or nil. The
// holder should stop using the executor once it is non-nil.
func (p *Pin) KillStatus() error {
	if p.cursor == nil {
		return nil
	}
	return p.manager.killStatus(p.cursor)
}

// Release hands the cursor back to its manager. If the operation was
// interrupted while holding the pin the cursor is destroyed instead.
func (p *Pin) Release() {
	if p.cursor == nil {
		return
	}
	c := p.cursor
	p.cursor = nil
	p.manager.unpin(p.op, c, p.generation)
}

// DeleteUnderlying deregisters and disposes the cursor, typically because
// the query is exhausted.
func (p *Pin) DeleteUnderlying() {
	if p.cursor == nil {
		return
	}
	c := p.cursor
	p.cursor = nil
	p.manager.deregisterAndDispose(p.op, c, p.generation)
}
