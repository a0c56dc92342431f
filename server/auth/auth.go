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

// Package auth decides whether a caller may act on a cursor someone else
// opened.
package auth

import (
	"sort"
	"strings"

	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pkg/errors"
)

// ErrUnauthorized is the cause of every authorization failure.
var ErrUnauthorized = errors.New("unauthorized")

// UserName is an authenticated user scoped to its authentication database.
type UserName struct {
	User string `json:"user"`
	DB   string `json:"db"`
}

func (u UserName) String() string {
	return u.User + "@" + u.DB
}

// ParseUserName parses "user@db". A name without a database defaults to
// the "admin" database.
func ParseUserName(s string) UserName {
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		return UserName{User: s[:i], DB: s[i+1:]}
	}
	return UserName{User: s, DB: "admin"}
}

// UserSet is a sorted, duplicate free list of users.
type UserSet []UserName

// NewUserSet builds a UserSet from users.
func NewUserSet(users ...UserName) UserSet {
	set := make(UserSet, 0, len(users))
	for _, u := range users {
		if !set.Contains(u) {
			set = append(set, u)
		}
	}
	sort.Slice(set, func(i, j int) bool { return set[i].String() < set[j].String() })
	return set
}

// Contains reports whether u is in the set.
func (s UserSet) Contains(u UserName) bool {
	for _, x := range s {
		if x == u {
			return true
		}
	}
	return false
}

// Coauthorized reports whether the two sets may act on each other's
// resources: both are unauthenticated, or they share a user.
func (s UserSet) Coauthorized(other UserSet) bool {
	if len(s) == 0 && len(other) == 0 {
		return true
	}
	for _, u := range s {
		if other.Contains(u) {
			return true
		}
	}
	return false
}

// Action is a privileged action.
type Action string

// ActionKillAnyCursor allows killing cursors owned by other users.
const ActionKillAnyCursor Action = "killAnyCursor"

// Principal is what the server knows about the caller of an operation.
type Principal struct {
	Users     UserSet
	SessionID *session.ID
	Actions   map[Action]struct{}
}

// Can reports whether the principal holds action.
func (p *Principal) Can(action Action) bool {
	if p == nil {
		return false
	}
	_, ok := p.Actions[action]
	return ok
}

// Checker implements the authorization rules for cursors. A disabled
// Checker allows everything.
type Checker struct {
	Enabled bool
}

// NewChecker creates a Checker.
func NewChecker(enabled bool) *Checker {
	return &Checker{Enabled: enabled}
}

// CheckAuthForKillCursors checks that caller may kill a cursor on ns owned
// by owners.
func (c *Checker) CheckAuthForKillCursors(caller *Principal, ns string, owners UserSet) error {
	if !c.Enabled {
		return nil
	}
	if caller.Can(ActionKillAnyCursor) {
		return nil
	}
	var users UserSet
	if caller != nil {
		users = caller.Users
	}
	if users.Coauthorized(owners) {
		return nil
	}
	return errors.Wrapf(ErrUnauthorized, "not authorized to kill cursor on %s", ns)
}

// CheckSessionPrivilege checks that the caller's session matches the
// session the cursor was created in.
func (c *Checker) CheckSessionPrivilege(caller *Principal, cursorSession *session.ID) error {
	var callerSession *session.ID
	if caller != nil {
		callerSession = caller.SessionID
	}
	switch {
	case callerSession != nil && cursorSession == nil:
		return errors.Wrap(ErrUnauthorized, "cursor was not created in a session")
	case cursorSession != nil && callerSession == nil:
		return errors.Wrapf(ErrUnauthorized, "cursor was created in session %s", cursorSession)
	case cursorSession != nil && *cursorSession != *callerSession:
		return errors.Wrapf(ErrUnauthorized, "cursor session %s does not match %s", cursorSession, callerSession)
	}
	return nil
}
