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

package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pingcap-incubator/tinycursor/pkg/testutil"
	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/config"
	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pingcap-incubator/tinycursor/server/query"
	"github.com/pingcap-incubator/tinycursor/server/session"
	. "github.com/pingcap/check"
)

func TestServer(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testServerSuite{})

type testServerSuite struct{}

func newTestConfig(c *C) *config.Config {
	cfg := config.NewConfig()
	cfg.StatusAddr = "127.0.0.1:0"
	c.Assert(cfg.Adjust(nil), IsNil)
	return cfg
}

func mustRunServer(c *C, cfg *config.Config) *Server {
	svr, err := CreateServer(cfg, nil)
	c.Assert(err, IsNil)
	c.Assert(svr.Run(context.Background()), IsNil)
	c.Assert(svr.IsClosed(), IsFalse)
	return svr
}

func docs(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(`{}`)
	}
	return out
}

func (s *testServerSuite) TestSweepCursors(c *C) {
	cfg := newTestConfig(c)
	cfg.Cursor.Timeout.Duration = time.Minute
	cfg.Cursor.MonitorInterval.Duration = time.Hour
	svr := mustRunServer(c, cfg)
	defer svr.Close()

	op := svr.NewOperation(context.Background(), nil)
	_, err := query.Find(op, svr.GetDirectory(), &query.FindRequest{Namespace: "test.c", Documents: docs(3), BatchSize: 1})
	c.Assert(err, IsNil)
	_, err = query.Find(op, svr.GetDirectory(), &query.FindRequest{Namespace: "test.c", Documents: docs(3), BatchSize: 1, NoTimeout: true})
	c.Assert(err, IsNil)

	timedOut, expired := svr.sweepCursors(time.Now())
	c.Assert(timedOut, Equals, 0)
	c.Assert(expired, Equals, 0)
	timedOut, _ = svr.sweepCursors(time.Now().Add(2 * time.Minute))
	c.Assert(timedOut, Equals, 1)
	c.Assert(svr.GetDirectory().NumCursors(), Equals, 1)
}

func (s *testServerSuite) TestMonitorTimesOutCursors(c *C) {
	cfg := newTestConfig(c)
	cfg.Cursor.Timeout.Duration = time.Millisecond
	cfg.Cursor.MonitorInterval.Duration = 10 * time.Millisecond
	svr := mustRunServer(c, cfg)
	defer svr.Close()

	_, err := query.Find(svr.NewOperation(context.Background(), nil), svr.GetDirectory(),
		&query.FindRequest{Namespace: "test.c", Documents: docs(3), BatchSize: 1})
	c.Assert(err, IsNil)
	testutil.WaitUntil(c, func(c *C) bool {
		return svr.GetDirectory().NumCursors() == 0
	})
}

func (s *testServerSuite) TestMonitorKillsExpiredSessionCursors(c *C) {
	cfg := newTestConfig(c)
	cfg.Cursor.MonitorInterval.Duration = 10 * time.Millisecond
	cfg.Session.TTL.Duration = 50 * time.Millisecond
	cfg.Session.GCInterval.Duration = 10 * time.Millisecond
	svr := mustRunServer(c, cfg)
	defer svr.Close()

	sid := session.NewID()
	op := svr.NewOperation(context.Background(), &auth.Principal{SessionID: &sid})
	c.Assert(svr.GetSessions().IsActive(sid), IsTrue)
	resp, err := query.Find(op, svr.GetDirectory(), &query.FindRequest{
		Namespace: "test.c", Documents: docs(3), BatchSize: 1, NoTimeout: true,
	})
	c.Assert(err, IsNil)
	c.Assert(resp.CursorID > 0, IsTrue)

	testutil.WaitUntil(c, func(c *C) bool {
		return svr.GetDirectory().NumCursors() == 0
	})
	c.Assert(svr.GetSessions().IsActive(sid), IsFalse)
}

func (s *testServerSuite) TestCloseKillsCursors(c *C) {
	svr := mustRunServer(c, newTestConfig(c))
	op := svr.NewOperation(context.Background(), nil)
	for _, ns := range []string{"", "test.a", "test.b"} {
		_, err := query.Find(op, svr.GetDirectory(), &query.FindRequest{Namespace: ns, Documents: docs(3), BatchSize: 1})
		c.Assert(err, IsNil)
	}
	c.Assert(svr.GetDirectory().NumCursors(), Equals, 3)

	svr.Close()
	c.Assert(svr.IsClosed(), IsTrue)
	c.Assert(svr.GetDirectory().NumCursors(), Equals, 0)
	svr.Close()
}

func (s *testServerSuite) TestCloseWaitsForPinnedCursor(c *C) {
	svr := mustRunServer(c, newTestConfig(c))
	op := svr.NewOperation(context.Background(), nil)
	exec := query.NewSliceExecutor(docs(3))
	pin := svr.GetDirectory().GetOrCreate("test.a").RegisterCursor(op, cursor.Params{Executor: exec})

	closed := make(chan struct{})
	go func() {
		svr.Close()
		close(closed)
	}()
	testutil.WaitUntil(c, func(c *C) bool {
		return op.IsKilled()
	})
	select {
	case <-closed:
		c.Fatal("close returned while a cursor was pinned")
	default:
	}

	pin.Release()
	<-closed
	c.Assert(exec.Closed(), IsTrue)
	c.Assert(svr.GetDirectory().NumCursors(), Equals, 0)
}
