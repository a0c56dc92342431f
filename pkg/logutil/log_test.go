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

package logutil

import (
	"testing"

	. "github.com/pingcap/check"
	"go.uber.org/zap/zapcore"
)

func TestLogutil(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testLogSuite{})

type testLogSuite struct{}

func (s *testLogSuite) TestStringToZapLogLevel(c *C) {
	c.Assert(StringToZapLogLevel("fatal"), Equals, zapcore.FatalLevel)
	c.Assert(StringToZapLogLevel("ERROR"), Equals, zapcore.ErrorLevel)
	c.Assert(StringToZapLogLevel("warn"), Equals, zapcore.WarnLevel)
	c.Assert(StringToZapLogLevel("warning"), Equals, zapcore.WarnLevel)
	c.Assert(StringToZapLogLevel("debug"), Equals, zapcore.DebugLevel)
	c.Assert(StringToZapLogLevel("info"), Equals, zapcore.InfoLevel)
	c.Assert(StringToZapLogLevel("whatever"), Equals, zapcore.InfoLevel)
}

func (s *testLogSuite) TestIsValidLevel(c *C) {
	c.Assert(IsValidLevel("Debug"), IsTrue)
	c.Assert(IsValidLevel("trace"), IsFalse)
}
