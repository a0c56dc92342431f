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
	"github.com/pingcap-incubator/tinycursor/server/audit"
	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
)

// SessionCache is told about every pin of a cursor opened in a session.
type SessionCache interface {
	Vivify(id session.ID)
}

// Authorizer decides whether a caller may act on a cursor.
type Authorizer interface {
	CheckAuthForKillCursors(caller *auth.Principal, ns string, owners auth.UserSet) error
	CheckSessionPrivilege(caller *auth.Principal, cursorSession *session.ID) error
}

// Auditor receives kill attempts.
type Auditor = audit.Sink

var (
	_ SessionCache = (*session.Cache)(nil)
	_ Authorizer   = (*auth.Checker)(nil)
	_ Auditor      = (*audit.Recorder)(nil)
	_ Auditor      = (*audit.Logger)(nil)
)
