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
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"_id":%d}`, i))
	}
	return out
}

func newOp() *cursor.Operation {
	return cursor.NewOperation(context.Background(), nil)
}

func TestSliceExecutor(t *testing.T) {
	exec := NewSliceExecutor(docs(5))
	op := newOp()

	batch, err := exec.NextBatch(op, 2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Equal(t, 3, exec.Remaining())
	assert.False(t, exec.IsEOF())

	batch, err = exec.NextBatch(op, 0)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
	assert.True(t, exec.IsEOF())

	exec.Dispose(op)
	assert.True(t, exec.Closed())
	_, err = exec.NextBatch(op, 1)
	assert.Equal(t, ErrExecutorClosed, errors.Cause(err))
}

func TestSliceExecutorInterrupted(t *testing.T) {
	exec := NewSliceExecutor(docs(3))
	op := newOp()
	op.Kill(cursor.ErrCursorKilled)
	_, err := exec.NextBatch(op, 2)
	assert.Equal(t, cursor.ErrCursorKilled, errors.Cause(err))
	assert.Equal(t, 3, exec.Remaining())
}

func TestFindGetMore(t *testing.T) {
	dir := cursor.NewDirectory()
	op := newOp()

	resp, err := Find(op, dir, &FindRequest{Namespace: "test.c", Documents: docs(5), BatchSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Batch, 2)
	require.NotZero(t, resp.CursorID)
	id := resp.CursorID
	assert.Equal(t, 1, dir.NumCursors())

	resp, err = GetMore(op, dir, "test.c", id, 2)
	require.NoError(t, err)
	assert.Len(t, resp.Batch, 2)
	assert.Equal(t, id, resp.CursorID)

	info, err := dir.CursorInfo(id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.NReturned)
	assert.Equal(t, int64(2), info.NBatches)
	assert.False(t, info.Pinned)

	resp, err = GetMore(op, dir, "test.c", id, 2)
	require.NoError(t, err)
	assert.Len(t, resp.Batch, 1)
	assert.Zero(t, resp.CursorID)
	assert.Equal(t, 0, dir.NumCursors())

	_, err = GetMore(op, dir, "test.c", id, 2)
	assert.True(t, cursor.IsNotFound(err))
	_, err = GetMore(op, dir, "test.none", id, 2)
	assert.True(t, cursor.IsNotFound(err))
	dir.Close()
}

func TestFindExhaustedInFirstBatch(t *testing.T) {
	dir := cursor.NewDirectory()
	resp, err := Find(newOp(), dir, &FindRequest{Namespace: "test.c", Documents: docs(3)})
	require.NoError(t, err)
	assert.Len(t, resp.Batch, 3)
	assert.Zero(t, resp.CursorID)
	assert.Equal(t, 0, dir.NumCursors())
}

func TestGetMoreSessionMismatch(t *testing.T) {
	dir := cursor.NewDirectory(cursor.WithAuthorizer(auth.NewChecker(true)))
	sid := session.NewID()
	owner := cursor.NewOperation(context.Background(), &auth.Principal{SessionID: &sid})
	resp, err := Find(owner, dir, &FindRequest{Namespace: "test.c", Documents: docs(3), BatchSize: 1})
	require.NoError(t, err)

	_, err = GetMore(newOp(), dir, "test.c", resp.CursorID, 1)
	assert.True(t, cursor.IsUnauthorized(err))

	_, err = GetMore(owner, dir, "test.c", resp.CursorID, 1)
	assert.NoError(t, err)
}

func TestKillCursors(t *testing.T) {
	dir := cursor.NewDirectory(cursor.WithAuthorizer(auth.NewChecker(true)))
	alice := &auth.Principal{Users: auth.NewUserSet(auth.ParseUserName("alice@admin"))}
	bob := &auth.Principal{Users: auth.NewUserSet(auth.ParseUserName("bob@admin"))}
	asAlice := cursor.NewOperation(context.Background(), alice)

	r1, err := Find(asAlice, dir, &FindRequest{Namespace: "test.c", Documents: docs(3), BatchSize: 1})
	require.NoError(t, err)
	r2, err := Find(asAlice, dir, &FindRequest{Namespace: "test.c", Documents: docs(3), BatchSize: 1})
	require.NoError(t, err)

	resp := KillCursors(cursor.NewOperation(context.Background(), bob), dir, "test.c", []cursor.ID{r1.CursorID})
	assert.Empty(t, resp.Killed)
	assert.Equal(t, []cursor.ID{r1.CursorID}, resp.Unauthorized)

	resp = KillCursors(asAlice, dir, "test.c", []cursor.ID{r1.CursorID, r2.CursorID, 1})
	assert.Equal(t, []cursor.ID{r1.CursorID, r2.CursorID}, resp.Killed)
	assert.Equal(t, []cursor.ID{1}, resp.NotFound)

	resp = KillCursors(asAlice, dir, "test.none", []cursor.ID{r1.CursorID})
	assert.Equal(t, []cursor.ID{r1.CursorID}, resp.NotFound)
	dir.Close()
}

func TestKillCursorsUnknownNamespaceAudited(t *testing.T) {
	recorder := audit.NewRecorder(0, nil)
	dir := cursor.NewDirectory(cursor.WithAuditor(recorder))

	resp := KillCursors(newOp(), dir, "db.nothere", []cursor.ID{1, 2})
	assert.Equal(t, []cursor.ID{1, 2}, resp.NotFound)
	events := recorder.Events()
	require.Len(t, events, 2)
	for i, e := range events {
		assert.Equal(t, "db.nothere", e.Namespace)
		assert.Equal(t, int64(i+1), e.CursorID)
		assert.Equal(t, audit.CodeCursorNotFound, e.Code)
	}
	dir.Close()
}

func TestGetMoreAfterKillWhilePinned(t *testing.T) {
	dir := cursor.NewDirectory()
	resp, err := Find(newOp(), dir, &FindRequest{Namespace: "test.c", Documents: docs(10), BatchSize: 1})
	require.NoError(t, err)
	id := resp.CursorID

	op := newOp()
	pin, err := dir.Get("test.c").PinCursor(op, id, false)
	require.NoError(t, err)
	assert.True(t, dir.KillCursor(newOp(), id, false))
	exec := pin.Cursor().Executor().(*SliceExecutor)
	_, err = exec.NextBatch(op, 1)
	assert.Equal(t, cursor.ErrCursorKilled, errors.Cause(err))
	pin.Release()
	assert.True(t, exec.Closed())
	assert.Equal(t, 0, dir.NumCursors())
}
