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
	"github.com/pingcap/errcode"
	"github.com/unrolled/render"
)

// startOperation starts an operation for the caller of r. On failure the
// error response has been written and ok is false.
func startOperation(svr *server.Server, rd *render.Render, w http.ResponseWriter, r *http.Request) (op *cursor.Operation, ok bool) {
	principal, err := principalFromRequest(r)
	if err != nil {
		apiutil.ErrorResp(rd, w, errcode.NewInvalidInputErr(err))
		return nil, false
	}
	return svr.NewOperation(r.Context(), principal), true
}

func parseCursorID(rd *render.Render, w http.ResponseWriter, vars map[string]string) (cursor.ID, bool) {
	id, errParse := apiutil.ParseInt64VarsField(vars, "id")
	if errParse != nil {
		apiutil.ErrorResp(rd, w, errcode.NewInvalidInputErr(errParse))
		return 0, false
	}
	return cursor.ID(id), true
}
