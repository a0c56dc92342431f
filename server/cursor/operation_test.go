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
	"net/http"

	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
	. "github.com/pingcap/check"
	"github.com/pingcap/errcode"
	"github.com/pkg/errors"
)

var _ = Suite(&testOperationSuite{})

type testOperationSuite struct{}

func (s *testOperationSuite) TestKill(c *C) {
	op := newOp()
	c.Assert(op.IsKilled(), IsFalse)
	c.Assert(op.CheckForInterrupt(), IsNil)

	op.Kill(ErrCursorKilled)
	op.Kill(ErrInterrupted)
	c.Assert(op.IsKilled(), IsTrue)
	c.Assert(op.CheckForInterrupt(), Equals, ErrCursorKilled)
	c.Assert(op.Context().Err(), Equals, context.Canceled)
}

func (s *testOperationSuite) TestParentCancel(c *C) {
	ctx, cancel := context.WithCancel(context.Background())
	op := NewOperation(ctx, nil)
	cancel()
	c.Assert(op.CheckForInterrupt(), Equals, ErrInterrupted)
	c.Assert(op.IsKilled(), IsFalse)
}

func (s *testOperationSuite) TestKillOutlivesFinish(c *C) {
	op := newOp()
	op.Finish()
	c.Assert(op.CheckForInterrupt(), IsNil)
	op.Kill(ErrCursorKilled)
	c.Assert(op.CheckForInterrupt(), Equals, ErrCursorKilled)

	ctx, cancel := context.WithCancel(context.Background())
	op = NewOperation(ctx, nil)
	cancel()
	op.Kill(nil)
	c.Assert(op.CheckForInterrupt(), Equals, ErrInterrupted)
}

func (s *testOperationSuite) TestPrincipal(c *C) {
	sid := session.NewID()
	users := auth.NewUserSet(auth.UserName{User: "u", DB: "admin"})
	op := NewOperation(context.Background(), &auth.Principal{Users: users, SessionID: &sid})
	c.Assert(op.Users(), DeepEquals, users)
	c.Assert(*op.SessionID(), Equals, sid)
	c.Assert(newOp().SessionID(), IsNil)
	c.Assert(newOp().ID() != newOp().ID(), IsTrue)
}

func (s *testOperationSuite) TestExclusive(c *C) {
	op := newOp()
	c.Assert(op.HoldsExclusive("db.a"), IsFalse)
	op.MarkExclusive("db.a")
	c.Assert(op.HoldsExclusive("db.a"), IsTrue)
	c.Assert(op.HoldsExclusive("db.b"), IsFalse)
	op.UnmarkExclusive("db.a")
	c.Assert(op.HoldsExclusive("db.a"), IsFalse)
}

func (s *testOperationSuite) TestErrorCodes(c *C) {
	cases := []struct {
		err    error
		status int
		is     func(error) bool
	}{
		{&NotFoundErr{CursorID: 1}, http.StatusNotFound, IsNotFound},
		{&InUseErr{CursorID: 1}, http.StatusConflict, IsInUse},
		{&KilledErr{CursorID: 1, Reason: "gone"}, http.StatusGone, IsKilled},
		{&UnauthorizedErr{CursorID: 1, Err: auth.ErrUnauthorized}, http.StatusForbidden, IsUnauthorized},
		{&OperationFailedErr{CursorID: 1}, http.StatusBadRequest, IsOperationFailed},
	}
	for _, t := range cases {
		wrapped := errors.WithStack(t.err)
		c.Assert(t.is(wrapped), IsTrue)
		c.Assert(errcode.CodeChain(wrapped).Code().HTTPCode(), Equals, t.status)
	}
	c.Assert(IsNotFound(errors.New("x")), IsFalse)
	c.Assert(IsNotFound(nil), IsFalse)
	c.Assert((&KilledErr{Reason: "gone"}).Error(), Equals, "gone")
	c.Assert(isKillInterrupt(ErrCursorKilled), IsTrue)
	c.Assert(isKillInterrupt(ErrExceededTimeLimit), IsFalse)
}
