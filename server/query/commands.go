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

package query

import (
	"encoding/json"

	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FindRequest opens a cursor over Documents.
type FindRequest struct {
	// Namespace is empty for a cursor not bound to a namespace.
	Namespace string            `json:"ns"`
	Documents []json.RawMessage `json:"documents"`
	BatchSize int               `json:"batch_size"`
	NoTimeout bool              `json:"no_timeout"`
}

// BatchResponse is one batch of a cursor. CursorID is 0 once the cursor is
// exhausted.
type BatchResponse struct {
	CursorID  cursor.ID         `json:"cursor_id"`
	Namespace string            `json:"ns"`
	Batch     []json.RawMessage `json:"batch"`
}

// Find runs the query, returns the first batch and leaves a cursor behind
// if more documents remain.
func Find(op *cursor.Operation, dir *cursor.Directory, req *FindRequest) (*BatchResponse, error) {
	exec := NewSliceExecutor(req.Documents)
	batch, err := exec.NextBatch(op, req.BatchSize)
	if err != nil {
		exec.Dispose(op)
		return nil, err
	}
	resp := &BatchResponse{Namespace: req.Namespace, Batch: batch}
	if exec.IsEOF() {
		exec.Dispose(op)
		return resp, nil
	}

	pin := dir.GetOrCreate(req.Namespace).RegisterCursor(op, cursor.Params{
		Executor:    exec,
		Namespace:   req.Namespace,
		Users:       op.Users(),
		SessionID:   op.SessionID(),
		NoTimeout:   req.NoTimeout,
		Originating: "find",
	})
	defer pin.Release()
	pin.Cursor().AddReturned(len(batch))
	resp.CursorID = pin.Cursor().ID()
	return resp, nil
}

// GetMore returns the next batch of a cursor opened by Find. The cursor is
// destroyed once exhausted.
func GetMore(op *cursor.Operation, dir *cursor.Directory, ns string, id cursor.ID, batchSize int) (*BatchResponse, error) {
	mgr := dir.Get(ns)
	if mgr == nil {
		return nil, errors.WithStack(&cursor.NotFoundErr{CursorID: id})
	}
	pin, err := mgr.PinCursor(op, id, true)
	if err != nil {
		return nil, err
	}
	defer pin.Release()

	exec, ok := pin.Cursor().Executor().(*SliceExecutor)
	if !ok {
		return nil, errors.Errorf("cursor %d was not opened by find", id)
	}
	batch, err := exec.NextBatch(op, batchSize)
	if err != nil {
		return nil, err
	}
	if status := pin.KillStatus(); status != nil {
		return nil, errors.WithStack(&cursor.KilledErr{CursorID: id, Reason: status.Error()})
	}
	pin.Cursor().AddReturned(len(batch))
	resp := &BatchResponse{CursorID: id, Namespace: ns, Batch: batch}
	if exec.IsEOF() {
		log.Debug("cursor exhausted",
			zap.String("ns", ns),
			zap.Int64("cursor-id", int64(id)),
			zap.Int64("n-returned", pin.Cursor().NReturned()))
		pin.DeleteUnderlying()
		resp.CursorID = 0
	}
	return resp, nil
}

// KillCursorsResponse reports the outcome of KillCursors per id.
type KillCursorsResponse struct {
	Killed       []cursor.ID `json:"killed"`
	NotFound     []cursor.ID `json:"not_found"`
	Unauthorized []cursor.ID `json:"unauthorized,omitempty"`
}

// KillCursors kills the given cursors of ns on behalf of op.
func KillCursors(op *cursor.Operation, dir *cursor.Directory, ns string, ids []cursor.ID) *KillCursorsResponse {
	resp := &KillCursorsResponse{
		Killed:   []cursor.ID{},
		NotFound: []cursor.ID{},
	}
	mgr := dir.Get(ns)
	for _, id := range ids {
		if mgr == nil {
			dir.AuditKill(op, ns, id, audit.CodeCursorNotFound)
			resp.NotFound = append(resp.NotFound, id)
			continue
		}
		err := mgr.KillCursorChecked(op, id)
		switch {
		case err == nil:
			resp.Killed = append(resp.Killed, id)
		case cursor.IsUnauthorized(err):
			resp.Unauthorized = append(resp.Unauthorized, id)
		default:
			resp.NotFound = append(resp.NotFound, id)
		}
	}
	return resp
}
