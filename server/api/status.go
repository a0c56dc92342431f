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

	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/unrolled/render"
)

// Status is a summary of the server state.
type Status struct {
	Name       string `json:"name"`
	Cursors    int    `json:"cursors"`
	Namespaces int    `json:"namespaces"`
	Sessions   int    `json:"sessions"`
}

type statusHandler struct {
	svr *server.Server
	rd  *render.Render
}

func newStatusHandler(svr *server.Server, rd *render.Render) *statusHandler {
	return &statusHandler{
		svr: svr,
		rd:  rd,
	}
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	dir := h.svr.GetDirectory()
	h.rd.JSON(w, http.StatusOK, &Status{
		Name:       h.svr.Name(),
		Cursors:    dir.NumCursors(),
		Namespaces: len(dir.Namespaces()),
		Sessions:   h.svr.GetSessions().Len(),
	})
}
