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
	"github.com/pingcap-incubator/tinycursor/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
	"github.com/urfave/negroni"
)

const (
	apiPrefix = "/cursor"
	pingAPI   = "/ping"
)

// NewHandler creates the HTTP handler of the server API.
func NewHandler(svr *server.Server) http.Handler {
	engine := negroni.New()
	engine.Use(negroni.NewRecovery())
	engine.Use(newRequestLogger())
	engine.UseHandler(createRouter(apiPrefix, svr))
	return engine
}

func createRouter(prefix string, svr *server.Server) *mux.Router {
	rd := render.New(render.Options{
		IndentJSON: true,
	})

	rootRouter := mux.NewRouter()
	rootRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router := rootRouter.PathPrefix(prefix).Subrouter()

	cursorHandler := newCursorHandler(svr, rd)
	router.HandleFunc("/api/v1/cursors", cursorHandler.List).Methods("GET")
	router.HandleFunc("/api/v1/cursors/kill", cursorHandler.Kill).Methods("POST")
	router.HandleFunc("/api/v1/cursors/timeout", cursorHandler.Timeout).Methods("POST")
	router.HandleFunc("/api/v1/cursors/{id}", cursorHandler.Get).Methods("GET")
	router.HandleFunc("/api/v1/cursors/{id}", cursorHandler.Delete).Methods("DELETE")

	queryHandler := newQueryHandler(svr, rd)
	router.HandleFunc("/api/v1/find", queryHandler.Find).Methods("POST")
	router.HandleFunc("/api/v1/getmore", queryHandler.GetMore).Methods("POST")

	namespaceHandler := newNamespaceHandler(svr, rd)
	router.HandleFunc("/api/v1/namespaces", namespaceHandler.List).Methods("GET")
	router.HandleFunc("/api/v1/namespaces/{ns}", namespaceHandler.Drop).Methods("DELETE")
	router.HandleFunc("/api/v1/namespaces/{ns}/invalidate", namespaceHandler.Invalidate).Methods("POST")
	router.HandleFunc("/api/v1/databases/{db}", namespaceHandler.DropDatabase).Methods("DELETE")

	sessionHandler := newSessionHandler(svr, rd)
	router.HandleFunc("/api/v1/sessions", sessionHandler.List).Methods("GET")
	router.HandleFunc("/api/v1/sessions/{id}", sessionHandler.End).Methods("DELETE")

	auditHandler := newAuditHandler(svr, rd)
	router.HandleFunc("/api/v1/audit", auditHandler.List).Methods("GET")
	router.HandleFunc("/api/v1/audit", auditHandler.Reset).Methods("DELETE")

	confHandler := newConfHandler(svr, rd)
	router.HandleFunc("/api/v1/config", confHandler.Get).Methods("GET")

	logHandler := newLogHandler(svr, rd)
	router.HandleFunc("/api/v1/admin/log", logHandler.Handle).Methods("POST")

	router.Handle("/api/v1/status", newStatusHandler(svr, rd)).Methods("GET")

	router.HandleFunc(pingAPI, func(w http.ResponseWriter, r *http.Request) {}).Methods("GET")

	return rootRouter
}
