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

// Package query implements find, getMore and killCursors on top of the
// cursor registry, over in-memory result sets.
package query

import (
	"encoding/json"

	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrExecutorClosed is returned by an executor used after disposal.
var ErrExecutorClosed = errors.New("executor is closed")

// SliceExecutor streams a fixed list of documents.
type SliceExecutor struct {
	docs   []json.RawMessage
	pos    int
	closed atomic.Bool
}

var _ cursor.Executor = (*SliceExecutor)(nil)

// NewSliceExecutor creates a SliceExecutor over docs.
func NewSliceExecutor(docs []json.RawMessage) *SliceExecutor {
	return &SliceExecutor{docs: docs}
}

// NextBatch returns up to n documents, or all remaining ones if n <= 0.
// It checks op for interrupts before each document.
func (e *SliceExecutor) NextBatch(op *cursor.Operation, n int) ([]json.RawMessage, error) {
	if e.closed.Load() {
		return nil, errors.WithStack(ErrExecutorClosed)
	}
	if n <= 0 {
		n = len(e.docs) - e.pos
	}
	batch := make([]json.RawMessage, 0, n)
	for len(batch) < n && e.pos < len(e.docs) {
		if err := op.CheckForInterrupt(); err != nil {
			return nil, errors.WithStack(err)
		}
		batch = append(batch, e.docs[e.pos])
		e.pos++
	}
	return batch, nil
}

// IsEOF reports whether every document has been returned.
func (e *SliceExecutor) IsEOF() bool {
	return e.pos >= len(e.docs)
}

// Remaining returns the number of documents not yet returned.
func (e *SliceExecutor) Remaining() int {
	return len(e.docs) - e.pos
}

// Dispose implements cursor.Executor.
func (e *SliceExecutor) Dispose(op *cursor.Operation) {
	e.closed.Store(true)
	e.docs = nil
}

// Closed reports whether the executor was disposed.
func (e *SliceExecutor) Closed() bool {
	return e.closed.Load()
}
