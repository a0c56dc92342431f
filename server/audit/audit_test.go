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

package audit

import (
	"testing"

	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	calls int
}

func (s *countingSink) LogKillCursors(users auth.UserSet, ns string, cursorID int64, code Code) {
	s.calls++
}

func TestRecorder(t *testing.T) {
	next := &countingSink{}
	r := NewRecorder(2, next)
	r.LogKillCursors(nil, "db.a", 1, CodeOK)
	r.LogKillCursors(nil, "db.b", 2, CodeCursorNotFound)
	r.LogKillCursors(auth.NewUserSet(auth.ParseUserName("alice@db")), "db.c", 3, CodeUnauthorized)

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "db.b", events[0].Namespace)
	assert.Equal(t, int64(3), events[1].CursorID)
	assert.Equal(t, CodeUnauthorized, events[1].Code)
	assert.Equal(t, 3, next.calls)

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestLogger(t *testing.T) {
	r := NewRecorder(0, NewLogger())
	r.LogKillCursors(nil, "db.a", 7, CodeOK)
	assert.Len(t, r.Events(), 1)
}
