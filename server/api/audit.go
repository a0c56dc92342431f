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

type auditHandler struct {
	svr *server.Server
	rd  *render.Render
}

func newAuditHandler(svr *server.Server, rd *render.Render) *auditHandler {
	return &auditHandler{
		svr: svr,
		rd:  rd,
	}
}

func (h *auditHandler) List(w http.ResponseWriter, r *http.Request) {
	h.rd.JSON(w, http.StatusOK, h.svr.GetAuditRecorder().Events())
}

func (h *auditHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svr.GetAuditRecorder().Reset()
	h.rd.JSON(w, http.StatusOK, nil)
}
