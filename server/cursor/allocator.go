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
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// DefaultIDAllocAttempts bounds how many random ids are drawn before id
// allocation gives up.
const DefaultIDAllocAttempts = 10000

const idMask = 0x7FFFFFFFFFFFFFFF

// IDAllocator draws random positive cursor ids.
type IDAllocator struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	maxAttempts int
}

// NewIDAllocator creates an IDAllocator. A nil src is seeded from
// crypto/rand. maxAttempts <= 0 means DefaultIDAllocAttempts.
func NewIDAllocator(src rand.Source, maxAttempts int) *IDAllocator {
	if src == nil {
		src = rand.NewSource(randomSeed())
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultIDAllocAttempts
	}
	return &IDAllocator{
		rnd:         rand.New(src),
		maxAttempts: maxAttempts,
	}
}

func randomSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		log.Fatal("failed to seed cursor id generator", zap.Error(err))
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

func (a *IDAllocator) next() ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ID(a.rnd.Uint64() & idMask)
}

// Allocate returns an id for which taken reports false. Running out of
// attempts is fatal: it means the id space is effectively full.
func (a *IDAllocator) Allocate(taken func(ID) bool) ID {
	for i := 0; i < a.maxAttempts; i++ {
		id := a.next()
		if id == 0 || taken(id) {
			continue
		}
		return id
	}
	log.Fatal("failed to allocate a cursor id", zap.Int("attempts", a.maxAttempts))
	return 0
}
