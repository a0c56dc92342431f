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

package auth

import (
	"testing"

	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserName(t *testing.T) {
	assert.Equal(t, UserName{User: "alice", DB: "test"}, ParseUserName("alice@test"))
	assert.Equal(t, UserName{User: "bob", DB: "admin"}, ParseUserName("bob"))
	assert.Equal(t, "alice@test", ParseUserName("alice@test").String())
}

func TestUserSet(t *testing.T) {
	alice, bob := ParseUserName("alice@test"), ParseUserName("bob@test")
	set := NewUserSet(bob, alice, bob)
	require.Len(t, set, 2)
	assert.Equal(t, alice, set[0])
	assert.True(t, set.Contains(bob))

	assert.True(t, UserSet(nil).Coauthorized(nil))
	assert.True(t, set.Coauthorized(NewUserSet(bob)))
	assert.False(t, set.Coauthorized(NewUserSet(ParseUserName("carol@test"))))
	assert.False(t, set.Coauthorized(nil))
}

func TestCheckAuthForKillCursors(t *testing.T) {
	alice, bob := ParseUserName("alice@test"), ParseUserName("bob@test")
	owners := NewUserSet(alice)

	disabled := NewChecker(false)
	assert.NoError(t, disabled.CheckAuthForKillCursors(&Principal{Users: NewUserSet(bob)}, "db.coll", owners))

	checker := NewChecker(true)
	assert.NoError(t, checker.CheckAuthForKillCursors(&Principal{Users: NewUserSet(alice)}, "db.coll", owners))
	err := checker.CheckAuthForKillCursors(&Principal{Users: NewUserSet(bob)}, "db.coll", owners)
	require.Error(t, err)
	assert.Equal(t, ErrUnauthorized, errors.Cause(err))

	admin := &Principal{
		Users:   NewUserSet(bob),
		Actions: map[Action]struct{}{ActionKillAnyCursor: {}},
	}
	assert.NoError(t, checker.CheckAuthForKillCursors(admin, "db.coll", owners))
}

func TestCheckSessionPrivilege(t *testing.T) {
	checker := NewChecker(true)
	a, b := session.NewID(), session.NewID()

	tests := []struct {
		caller *session.ID
		cursor *session.ID
		ok     bool
	}{
		{nil, nil, true},
		{&a, &a, true},
		{&a, nil, false},
		{nil, &a, false},
		{&a, &b, false},
	}
	for i, tt := range tests {
		err := checker.CheckSessionPrivilege(&Principal{SessionID: tt.caller}, tt.cursor)
		if tt.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.Equal(t, ErrUnauthorized, errors.Cause(err), "case %d", i)
		}
	}
}
