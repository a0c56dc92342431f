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
	"time"

	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
	. "github.com/pingcap/check"
)

var _ = Suite(&testDirectorySuite{})

type testDirectorySuite struct {
	clock    *mockClock
	recorder *audit.Recorder
	dir      *Directory
}

func (s *testDirectorySuite) SetUpTest(c *C) {
	s.clock = newMockClock()
	s.recorder = audit.NewRecorder(0, nil)
	s.dir = NewDirectory(
		WithClock(s.clock.Now),
		WithCursorTimeout(time.Minute),
		WithAuditor(s.recorder),
		WithAuthorizer(auth.NewChecker(true)),
	)
}

func (s *testDirectorySuite) open(c *C, ns string, params Params) (ID, *mockExecutor) {
	exec := &mockExecutor{}
	params.Executor = exec
	pin := s.dir.GetOrCreate(ns).RegisterCursor(newOp(), params)
	id := pin.Cursor().ID()
	pin.Release()
	return id, exec
}

func (s *testDirectorySuite) TestNamespaces(c *C) {
	c.Assert(s.dir.Global().IsGlobal(), IsTrue)
	c.Assert(s.dir.Get(""), Equals, s.dir.Global())
	c.Assert(s.dir.Get("test.b"), IsNil)

	for _, ns := range []string{"test.b", "admin.x", "test.a", "test.b"} {
		m := s.dir.GetOrCreate(ns)
		c.Assert(m.Namespace(), Equals, ns)
		c.Assert(s.dir.GetOrCreate(ns), Equals, m)
	}
	c.Assert(s.dir.Namespaces(), DeepEquals, []string{"admin.x", "test.a", "test.b"})
}

func (s *testDirectorySuite) TestKillCursorByID(c *C) {
	id1, exec1 := s.open(c, "test.a", Params{})
	id2, exec2 := s.open(c, "", Params{})
	c.Assert(s.dir.NumCursors(), Equals, 2)

	killed := s.dir.KillCursors(newOp(), []ID{id1, id2, 12345})
	c.Assert(killed, Equals, 2)
	c.Assert(exec1.Disposed(), Equals, 1)
	c.Assert(exec2.Disposed(), Equals, 1)
	c.Assert(s.dir.NumCursors(), Equals, 0)

	events := s.recorder.Events()
	c.Assert(events, HasLen, 3)
	c.Assert(events[0].Namespace, Equals, "test.a")
	c.Assert(events[0].Code, Equals, audit.CodeOK)
	c.Assert(events[1].Namespace, Equals, "")
	c.Assert(events[2].Code, Equals, audit.CodeCursorNotFound)
	s.dir.Close()
}

func (s *testDirectorySuite) TestKillCursorUnauthorized(c *C) {
	owner := auth.NewUserSet(auth.UserName{User: "alice", DB: "admin"})
	id, exec := s.open(c, "test.a", Params{Users: owner})

	intruder := NewOperation(context.Background(), &auth.Principal{
		Users: auth.NewUserSet(auth.UserName{User: "mallory", DB: "admin"}),
	})
	c.Assert(s.dir.KillCursor(intruder, id, true), IsFalse)
	c.Assert(exec.Disposed(), Equals, 0)
	events := s.recorder.Events()
	c.Assert(events, HasLen, 1)
	c.Assert(events[0].Code, Equals, audit.CodeUnauthorized)

	// Internal kills skip the check.
	c.Assert(s.dir.KillCursor(intruder, id, false), IsTrue)
	c.Assert(exec.Disposed(), Equals, 1)
}

func (s *testDirectorySuite) TestDrop(c *C) {
	id, exec := s.open(c, "test.a", Params{})
	pin := s.dir.GetOrCreate("test.a").RegisterCursor(newOp(), Params{Executor: &mockExecutor{}})
	pinnedExec := pin.Cursor().Executor().(*mockExecutor)
	other, otherExec := s.open(c, "test.b", Params{})

	c.Assert(s.dir.Drop(newOp(), "test.a", "collection dropped"), IsTrue)
	c.Assert(s.dir.Drop(newOp(), "test.a", "collection dropped"), IsFalse)
	c.Assert(exec.Disposed(), Equals, 1)
	c.Assert(pinnedExec.Disposed(), Equals, 0)
	c.Assert(s.dir.Get("test.a"), IsNil)
	c.Assert(s.dir.Namespaces(), DeepEquals, []string{"test.b"})
	c.Assert(s.dir.KillCursor(newOp(), id, false), IsFalse)

	pin.Release()
	c.Assert(pinnedExec.Disposed(), Equals, 1)

	c.Assert(s.dir.KillCursor(newOp(), other, false), IsTrue)
	c.Assert(otherExec.Disposed(), Equals, 1)
	s.dir.Close()
}

func (s *testDirectorySuite) TestDropDatabase(c *C) {
	for _, ns := range []string{"test.a", "test.b", "tests.a", "admin.x"} {
		s.open(c, ns, Params{})
	}
	dropped := s.dir.DropDatabase(newOp(), "test", "database dropped")
	c.Assert(dropped, DeepEquals, []string{"test.a", "test.b"})
	c.Assert(s.dir.Namespaces(), DeepEquals, []string{"admin.x", "tests.a"})
	c.Assert(s.dir.NumCursors(), Equals, 2)
	c.Assert(s.dir.DropDatabase(newOp(), "nothing", "database dropped"), HasLen, 0)
}

func (s *testDirectorySuite) TestInvalidate(c *C) {
	id, exec := s.open(c, "test.a", Params{})
	op := newOp()
	op.MarkExclusive("test.a")
	c.Assert(s.dir.Invalidate(op, "test.a", "collection renamed"), IsTrue)
	c.Assert(s.dir.Invalidate(op, "test.none", "collection renamed"), IsFalse)
	c.Assert(s.dir.Invalidate(op, "", "collection renamed"), IsFalse)

	info, err := s.dir.CursorInfo(id)
	c.Assert(err, IsNil)
	c.Assert(info.Killed, Equals, "collection renamed")
	_, err = s.dir.Get("test.a").PinCursor(newOp(), id, false)
	c.Assert(IsKilled(err), IsTrue)
	c.Assert(exec.Disposed(), Equals, 1)
	_, err = s.dir.CursorInfo(id)
	c.Assert(IsNotFound(err), IsTrue)
}

func (s *testDirectorySuite) TestTimeoutCursors(c *C) {
	s.open(c, "test.a", Params{})
	s.open(c, "test.b", Params{})
	s.open(c, "", Params{})
	keep, _ := s.open(c, "test.b", Params{NoTimeout: true})

	s.clock.Advance(2 * time.Minute)
	c.Assert(s.dir.TimeoutCursors(newOp(), s.clock.Now()), Equals, 3)
	c.Assert(s.dir.TimeoutCursors(newOp(), s.clock.Now()), Equals, 0)
	c.Assert(s.dir.NumCursors(), Equals, 1)
	infos := s.dir.ActiveCursors()
	c.Assert(infos, HasLen, 1)
	c.Assert(infos[0].ID, Equals, keep)
	c.Assert(infos[0].NoTimeout, IsTrue)
}

func (s *testDirectorySuite) TestKillCursorsWithMatchingSessions(c *C) {
	expired, alive := session.NewID(), session.NewID()
	s.open(c, "test.a", Params{SessionID: &expired})
	s.open(c, "", Params{SessionID: &expired})
	keep, _ := s.open(c, "test.b", Params{SessionID: &alive})
	s.open(c, "test.b", Params{})

	set := make(session.Set)
	s.dir.AppendActiveSessions(set)
	c.Assert(set, HasLen, 2)

	killed := s.dir.KillCursorsWithMatchingSessions(newOp(), func(id session.ID) bool {
		return id == expired
	})
	c.Assert(killed, Equals, 2)
	c.Assert(s.dir.NumCursors(), Equals, 2)
	_, err := s.dir.CursorInfo(keep)
	c.Assert(err, IsNil)

	events := s.recorder.Events()
	c.Assert(events, HasLen, 2)
	for _, e := range events {
		c.Assert(e.Code, Equals, audit.CodeOK)
	}
}
