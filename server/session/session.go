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

// Package session tracks logical client sessions. A cursor opened inside
// a session records the session id; pinning that cursor counts as
// activity that keeps the session alive.
package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap-incubator/tinycursor/pkg/cache"
	"github.com/pkg/errors"
)

// ID identifies a logical session.
type ID uuid.UUID

// NewID returns a random session id.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical textual form of a session id.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, errors.WithStack(err)
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Set is a set of session ids.
type Set map[ID]struct{}

// Add inserts id into the set.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Contains reports whether id is in the set.
func (s Set) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s Set) Sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Cache records the last activity of each session. A session not
// vivified within the ttl is considered expired.
type Cache struct {
	records *cache.TTL[ID, time.Time]
	now     func() time.Time
}

// NewCache creates a Cache whose expired records are collected every
// gcInterval until ctx is done.
func NewCache(ctx context.Context, ttl, gcInterval time.Duration) *Cache {
	return &Cache{
		records: cache.NewTTL[ID, time.Time](ctx, gcInterval, ttl),
		now:     time.Now,
	}
}

// Vivify marks the session as used now.
func (c *Cache) Vivify(id ID) {
	c.records.Put(id, c.now())
}

// LastUse returns when the session was last vivified.
func (c *Cache) LastUse(id ID) (time.Time, bool) {
	return c.records.Peek(id)
}

// IsActive reports whether the session has been vivified within the ttl.
func (c *Cache) IsActive(id ID) bool {
	_, ok := c.records.Peek(id)
	return ok
}

// End forgets the session.
func (c *Cache) End(id ID) {
	c.records.Remove(id)
}

// ActiveSessions returns the ids of all unexpired sessions.
func (c *Cache) ActiveSessions() Set {
	set := make(Set)
	for _, item := range c.records.Elems() {
		set.Add(item.Key)
	}
	return set
}

// Len returns the number of records held, including expired records not
// yet collected.
func (c *Cache) Len() int {
	return c.records.Len()
}
