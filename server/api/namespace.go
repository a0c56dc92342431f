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

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinycursor/pkg/apiutil"
	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/pingcap/errcode"
	"github.com/pkg/errors"
	"github.com/unrolled/render"
)

const defaultDropReason = "namespace dropped"

type namespaceHandler struct {
	svr *server.Server
	rd  *render.Render
}

func newNamespaceHandler(svr *server.Server, rd *render.Render) *namespaceHandler {
	return &namespaceHandler{
		svr: svr,
		rd:  rd,
	}
}

func (h *namespaceHandler) List(w http.ResponseWriter, r *http.Request) {
	h.rd.JSON(w, http.StatusOK, h.svr.GetDirectory().Namespaces())
}

func reasonOf(r *http.Request, def string) string {
	if reason := r.URL.Query().Get("reason"); reason != "" {
		return reason
	}
	return def
}

// Drop destroys every cursor of a namespace.
func (h *namespaceHandler) Drop(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["ns"]
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	if !h.svr.GetDirectory().Drop(op, ns, reasonOf(r, defaultDropReason)) {
		apiutil.ErrorResp(h.rd, w, errcode.NewNotFoundErr(errors.Errorf("namespace %s not found", ns)))
		return
	}
	h.rd.JSON(w, http.StatusOK, nil)
}

// DropDatabase drops every namespace of a database.
func (h *namespaceHandler) DropDatabase(w http.ResponseWriter, r *http.Request) {
	db := mux.Vars(r)["db"]
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	dropped := h.svr.GetDirectory().DropDatabase(op, db, reasonOf(r, "database dropped"))
	if dropped == nil {
		dropped = []string{}
	}
	h.rd.JSON(w, http.StatusOK, dropped)
}

type invalidateInput struct {
	Reason string `json:"reason"`
}

// Invalidate kills every cursor of a namespace but keeps idle cursors
// around so their next use reports the reason. The API acts as the catalog
// layer here and takes the namespace exclusively for the call.
func (h *namespaceHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["ns"]
	var input invalidateInput
	if err := apiutil.ReadJSONRespondError(h.rd, w, r.Body, &input); err != nil {
		return
	}
	if input.Reason == "" {
		apiutil.ErrorResp(h.rd, w, errcode.NewInvalidInputErr(errors.New("reason must not be empty")))
		return
	}
	op, ok := startOperation(h.svr, h.rd, w, r)
	if !ok {
		return
	}
	defer op.Finish()
	op.MarkExclusive(ns)
	defer op.UnmarkExclusive(ns)
	if !h.svr.GetDirectory().Invalidate(op, ns, input.Reason) {
		apiutil.ErrorResp(h.rd, w, errcode.NewNotFoundErr(errors.Errorf("namespace %s not found", ns)))
		return
	}
	h.rd.JSON(w, http.StatusOK, nil)
}
