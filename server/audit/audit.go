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

// Package audit records who killed which cursor.
package audit

import (
	"sync"
	"time"

	"github.com/pingcap-incubator/tinycursor/server/auth"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Code is the outcome of an audited kill.
type Code string

// Kill outcomes.
const (
	CodeOK             Code = "OK"
	CodeCursorNotFound Code = "CursorNotFound"
	CodeUnauthorized   Code = "Unauthorized"
	CodeCursorInUse    Code = "CursorInUse"
)

// Event is one audited kill attempt.
type Event struct {
	Time      time.Time    `json:"time"`
	Users     auth.UserSet `json:"users,omitempty"`
	Namespace string       `json:"ns"`
	CursorID  int64        `json:"cursor_id"`
	Code      Code         `json:"code"`
}

// Sink receives audit events.
type Sink interface {
	LogKillCursors(users auth.UserSet, ns string, cursorID int64, code Code)
}

// Logger writes audit events to the "audit" zap logger.
type Logger struct {
	lg *zap.Logger
}

// NewLogger creates a Logger on top of the global logger.
func NewLogger() *Logger {
	return &Logger{lg: log.L().Named("audit")}
}

// LogKillCursors implements Sink.
func (l *Logger) LogKillCursors(users auth.UserSet, ns string, cursorID int64, code Code) {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.String())
	}
	l.lg.Info("kill cursors authz check",
		zap.Strings("users", names),
		zap.String("ns", ns),
		zap.Int64("cursor-id", cursorID),
		zap.String("result", string(code)))
}

// Recorder keeps the most recent events in memory and forwards every event
// to an optional next Sink.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
	next   Sink
	now    func() time.Time
}

// NewRecorder creates a Recorder holding up to limit events. limit <= 0
// keeps everything.
func NewRecorder(limit int, next Sink) *Recorder {
	return &Recorder{
		limit: limit,
		next:  next,
		now:   time.Now,
	}
}

// LogKillCursors implements Sink.
func (r *Recorder) LogKillCursors(users auth.UserSet, ns string, cursorID int64, code Code) {
	r.mu.Lock()
	r.events = append(r.events, Event{
		Time:      r.now(),
		Users:     users,
		Namespace: ns,
		CursorID:  cursorID,
		Code:      code,
	})
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0:0], r.events[len(r.events)-r.limit:]...)
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.LogKillCursors(users, ns, cursorID, code)
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
