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
	"strings"
	"time"

	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap-incubator/tinycursor/server/session"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"github.com/urfave/negroni"
	"go.uber.org/zap"
)

// Headers carrying the caller identity.
const (
	userHeader    = "X-Cursor-User"
	sessionHeader = "X-Cursor-Session"
	actionHeader  = "X-Cursor-Action"
)

type requestLogger struct{}

func newRequestLogger() negroni.Handler {
	return &requestLogger{}
}

func (l *requestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	res := w.(negroni.ResponseWriter)
	log.Debug("http request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", res.Status()),
		zap.Duration("cost", time.Since(start)))
}

// principalFromRequest reads the caller identity from the request headers.
// Users are "user@db" values, comma separated or repeated.
func principalFromRequest(r *http.Request) (*auth.Principal, error) {
	p := &auth.Principal{}
	var users []auth.UserName
	for _, v := range r.Header[userHeader] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				users = append(users, auth.ParseUserName(name))
			}
		}
	}
	p.Users = auth.NewUserSet(users...)

	if v := r.Header.Get(sessionHeader); v != "" {
		sid, err := session.ParseID(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s header", sessionHeader)
		}
		p.SessionID = &sid
	}
	for _, v := range r.Header[actionHeader] {
		if p.Actions == nil {
			p.Actions = make(map[auth.Action]struct{})
		}
		for _, action := range strings.Split(v, ",") {
			p.Actions[auth.Action(strings.TrimSpace(action))] = struct{}{}
		}
	}
	return p, nil
}
