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
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinycursor/pkg/apiutil"
	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pingcap-incubator/tinycursor/server/query"
	"github.com/pingcap/errcode"
	"github.com/pkg/errors"
	"github.com/unrolled/render"
)

type cursorHandler struct {
	svr *server.Server
	rd  *render.Render
}

func newCursorHandler(svr *server.Server, rd *render.Render) *cursorHandler {
	return &cursorHandler{
		svr: svr,
		rd:  rd,
	}
}

// List returns every cursor, optionally only those of ?ns=.
func (h *cursorHandler) List(w http.ResponseWriter, r *http.Request) {
	infos := h.svr.GetDirectory().ActiveCursors()
	if ns, ok := r.URL.Query()["ns"]; ok && len(ns) > 0 {
		filtered := infos[:0]
		for _, info := range infos {
			if info.Namespace == ns[0] {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	if infos == nil {
		infos = []*cursor.Info{}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	h.rd.JSON(w, http.StatusOK, infos)
}

func (h *cursorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCursorID(h.rd, w, mux.Vars(r))
	if !ok {
		return
	}
	info, err := h.svr.GetDirectory().CursorInfo(id)
	if err != nil {
		apiutil.ErrorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, info)
}

// Delete kills one cursor wherever it is registered.
func (h *cursorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCursorID(h.rd, w, mux.Vars(r))
	if !ok {
		return
	}
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	if !h.svr.GetDirectory().KillCursor(op, id, true) {
		apiutil.ErrorResp(h.rd, w, errors.WithStack(&cursor.NotFoundErr{CursorID: id}))
		return
	}
	h.rd.JSON(w, http.StatusOK, nil)
}

type killCursorsInput struct {
	Namespace string      `json:"ns"`
	IDs       []cursor.ID `json:"ids"`
}

// Kill kills cursors of one namespace and reports the outcome per id.
func (h *cursorHandler) Kill(w http.ResponseWriter, r *http.Request) {
	var input killCursorsInput
	if err := apiutil.ReadJSONRespondError(h.rd, w, r.Body, &input); err != nil {
		return
	}
	if len(input.IDs) == 0 {
		apiutil.ErrorResp(h.rd, w, errcode.NewInvalidInputErr(errors.New("ids must not be empty")))
		return
	}
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	h.rd.JSON(w, http.StatusOK, query.KillCursors(op, h.svr.GetDirectory(), input.Namespace, input.IDs))
}

// Timeout runs an idle cursor sweep now.
func (h *cursorHandler) Timeout(w http.ResponseWriter, r *http.Request) {
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	n := h.svr.GetDirectory().TimeoutCursors(op, time.Now())
	h.rd.JSON(w, http.StatusOK, map[string]int{"timed_out": n})
}
