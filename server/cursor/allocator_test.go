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
	. "github.com/pingcap/check"
)

var _ = Suite(&testAllocatorSuite{})

type testAllocatorSuite struct{}

// sequenceSource replays fixed values.
type sequenceSource struct {
	values []uint64
	next   int
}

func (s *sequenceSource) Uint64() uint64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func (s *sequenceSource) Int63() int64 {
	return int64(s.Uint64() & idMask)
}

func (s *sequenceSource) Seed(int64) {}

func (s *testAllocatorSuite) TestSkipsTakenIDs(c *C) {
	src := &sequenceSource{values: []uint64{7, 0, 7, 1<<63 | 9, 11}}
	a := NewIDAllocator(src, 10)
	taken := map[ID]bool{7: true}
	id := a.Allocate(func(id ID) bool { return taken[id] })
	c.Assert(id, Equals, ID(9))
	c.Assert(src.next, Equals, 4)
}

func (s *testAllocatorSuite) TestPositiveIDs(c *C) {
	a := NewIDAllocator(nil, 0)
	c.Assert(a.maxAttempts, Equals, DefaultIDAllocAttempts)
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := a.Allocate(func(id ID) bool { return seen[id] })
		c.Assert(id > 0, IsTrue)
		seen[id] = true
	}
	c.Assert(seen, HasLen, 1000)
}

func (s *testAllocatorSuite) TestManagerUsesSource(c *C) {
	src := &sequenceSource{values: []uint64{5, 5, 6}}
	m := NewManager("db.alloc", WithRandSource(src), WithIDAllocAttempts(3))
	p1 := m.RegisterCursor(newOp(), Params{Executor: &mockExecutor{}})
	c.Assert(p1.Cursor().ID(), Equals, ID(5))
	p2 := m.RegisterCursor(newOp(), Params{Executor: &mockExecutor{}})
	c.Assert(p2.Cursor().ID(), Equals, ID(6))
	p1.DeleteUnderlying()
	p2.DeleteUnderlying()
	m.Close()
}
