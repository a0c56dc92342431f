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

	"github.com/pingcap-incubator/tinycursor/pkg/apiutil"
	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/pingcap-incubator/tinycursor/server/cursor"
	"github.com/pingcap-incubator/tinycursor/server/query"
	"github.com/unrolled/render"
)

type queryHandler struct {
	svr *server.Server
	rd  *render.Render
}

func newQueryHandler(svr *server.Server, rd *render.Render) *queryHandler {
	return &queryHandler{
		svr: svr,
		rd:  rd,
	}
}

func (h *queryHandler) Find(w http.ResponseWriter, r *http.Request) {
	var input query.FindRequest
	if err := apiutil.ReadJSONRespondError(h.rd, w, r.Body, &input); err != nil {
		return
	}
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	resp, err := query.Find(op, h.svr.GetDirectory(), &input)
	if err != nil {
		apiutil.ErrorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, resp)
}

type getMoreInput struct {
	Namespace string    `json:"ns"`
	CursorID  cursor.ID `json:"cursor_id"`
	BatchSize int       `json:"batch_size"`
}

func (h *queryHandler) GetMore(w http.ResponseWriter, r *http.Request) {
	var input getMoreInput
	if err := apiutil.ReadJSONRespondError(h.rd, w, r.Body, &input); err != nil {
		return
	}
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	resp, err := query.GetMore(op, h.svr.GetDirectory(), input.Namespace, input.CursorID, input.BatchSize)
	if err != nil {
		apiutil.ErrorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, resp)
}
