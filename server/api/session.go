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

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinycursor/pkg/apiutil"
	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pingcap/errcode"
	"github.com/unrolled/render"
)

type sessionHandler struct {
	svr *server.Server
	rd  *render.Render
}

func newSessionHandler(svr *server.Server, rd *render.Render) *sessionHandler {
	return &sessionHandler{
		svr: svr,
		rd:  rd,
	}
}

// SessionInfo describes a session with open cursors.
type SessionInfo struct {
	ID      session.ID `json:"id"`
	Active  bool       `json:"active"`
	LastUse *time.Time `json:"last_use,omitempty"`
	Cursors int        `json:"cursors"`
}

// List returns the sessions that own cursors.
func (h *sessionHandler) List(w http.ResponseWriter, r *http.Request) {
	dir := h.svr.GetDirectory()
	set := make(session.Set)
	dir.AppendActiveSessions(set)

	counts := make(map[session.ID]int)
	for _, info := range dir.ActiveCursors() {
		if info.SessionID != nil {
			counts[*info.SessionID]++
		}
	}
	sessions := h.svr.GetSessions()
	infos := make([]SessionInfo, 0, len(set))
	for _, id := range set.Sorted() {
		info := SessionInfo{ID: id, Active: sessions.IsActive(id), Cursors: counts[id]}
		if t, ok := sessions.LastUse(id); ok {
			info.LastUse = &t
		}
		infos = append(infos, info)
	}
	h.rd.JSON(w, http.StatusOK, infos)
}

// End ends a session and kills its cursors.
func (h *sessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sid, err := session.ParseID(mux.Vars(r)["id"])
	if err != nil {
		apiutil.ErrorResp(h.rd, w, errcode.NewInvalidInputErr(err))
		return
	}
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	h.svr.GetSessions().End(sid)
	killed := h.svr.GetDirectory().KillCursorsWithMatchingSessions(op, func(id session.ID) bool {
		return id == sid
	})
	h.rd.JSON(w, http.StatusOK, map[string]int{"killed": killed})
}
