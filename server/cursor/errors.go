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

package cursor

import (
	"fmt"
	"net/http"

	"github.com/pingcap/errcode"
	"github.com/pkg/errors"
)

var (
	// CursorNotFoundCode is the code of NotFoundErr.
	CursorNotFoundCode = errcode.NotFoundCode.Child("missing.cursor")

	cursorStateCode = errcode.StateCode.Child("state.cursor")
	// CursorInUseCode is the code of InUseErr.
	CursorInUseCode = cursorStateCode.Child("state.cursor.inuse").SetHTTP(http.StatusConflict)
	// CursorKilledCode is the code of KilledErr.
	CursorKilledCode = cursorStateCode.Child("state.cursor.killed").SetHTTP(http.StatusGone)
	// CursorPinnedCode is the code of OperationFailedErr.
	CursorPinnedCode = cursorStateCode.Child("state.cursor.pinned")

	// UnauthorizedCode is the code of UnauthorizedErr.
	UnauthorizedCode = errcode.NewCode("authz").SetHTTP(http.StatusForbidden)
)

// Interrupt causes. An Operation killed with one of these observes it at
// its next CheckForInterrupt.
var (
	// ErrInterrupted is raised by an explicit kill of the operation.
	ErrInterrupted = errors.New("operation was interrupted")
	// ErrCursorKilled is raised on the operation pinning a cursor that
	// someone killed.
	ErrCursorKilled = errors.New("cursor killed while in use")
	// ErrExceededTimeLimit is reported when the operation deadline passed.
	ErrExceededTimeLimit = errors.New("operation exceeded time limit")
)

var (
	_ errcode.ErrorCode = (*NotFoundErr)(nil)
	_ errcode.ErrorCode = (*InUseErr)(nil)
	_ errcode.ErrorCode = (*KilledErr)(nil)
	_ errcode.ErrorCode = (*UnauthorizedErr)(nil)
	_ errcode.ErrorCode = (*OperationFailedErr)(nil)
)

// NotFoundErr means the id is unknown to the manager.
type NotFoundErr struct {
	CursorID ID `json:"cursorId"`
}

func (e *NotFoundErr) Error() string {
	return fmt.Sprintf("cursor id %d not found", e.CursorID)
}

// Code returns CursorNotFoundCode.
func (e *NotFoundErr) Code() errcode.Code { return CursorNotFoundCode }

// InUseErr means another operation holds the pin.
type InUseErr struct {
	CursorID ID `json:"cursorId"`
}

func (e *InUseErr) Error() string {
	return fmt.Sprintf("cursor id %d is already in use", e.CursorID)
}

// Code returns CursorInUseCode.
func (e *InUseErr) Code() errcode.Code { return CursorInUseCode }

// KilledErr means the cursor was killed while idle. Reason is the kill
// reason exactly as it was given.
type KilledErr struct {
	CursorID ID     `json:"cursorId"`
	Reason   string `json:"reason"`
}

func (e *KilledErr) Error() string {
	return e.Reason
}

// Code returns CursorKilledCode.
func (e *KilledErr) Code() errcode.Code { return CursorKilledCode }

// UnauthorizedErr means the caller may not act on the cursor.
type UnauthorizedErr struct {
	CursorID ID    `json:"cursorId"`
	Err      error `json:"-"`
}

func (e *UnauthorizedErr) Error() string {
	return fmt.Sprintf("cursor id %d: %v", e.CursorID, e.Err)
}

// Cause returns the authorization error.
func (e *UnauthorizedErr) Cause() error { return e.Err }

// Code returns UnauthorizedCode.
func (e *UnauthorizedErr) Code() errcode.Code { return UnauthorizedCode }

// OperationFailedErr means an erase was attempted on a pinned cursor.
type OperationFailedErr struct {
	CursorID ID `json:"cursorId"`
}

func (e *OperationFailedErr) Error() string {
	return fmt.Sprintf("cannot erase cursor id %d: it is in use", e.CursorID)
}

// Code returns CursorPinnedCode.
func (e *OperationFailedErr) Code() errcode.Code { return CursorPinnedCode }

// IsNotFound reports whether err is a NotFoundErr.
func IsNotFound(err error) bool {
	_, ok := asCursorError(err).(*NotFoundErr)
	return ok
}

// IsInUse reports whether err is an InUseErr.
func IsInUse(err error) bool {
	_, ok := asCursorError(err).(*InUseErr)
	return ok
}

// IsKilled reports whether err is a KilledErr.
func IsKilled(err error) bool {
	_, ok := asCursorError(err).(*KilledErr)
	return ok
}

// IsUnauthorized reports whether err is an UnauthorizedErr.
func IsUnauthorized(err error) bool {
	_, ok := asCursorError(err).(*UnauthorizedErr)
	return ok
}

// IsOperationFailed reports whether err is an OperationFailedErr.
func IsOperationFailed(err error) bool {
	_, ok := asCursorError(err).(*OperationFailedErr)
	return ok
}

// asCursorError unwraps stack wrappers down to the first cursor error.
// UnauthorizedErr has its own cause, so errors.Cause alone would walk past
// it.
func asCursorError(err error) error {
	for err != nil {
		switch err.(type) {
		case *NotFoundErr, *InUseErr, *KilledErr, *UnauthorizedErr, *OperationFailedErr:
			return err
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return err
		}
		err = cause.Cause()
	}
	return nil
}

// isKillInterrupt reports whether an interrupt means the cursor should be
// destroyed rather than kept for the next caller.
func isKillInterrupt(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrInterrupted || cause == ErrCursorKilled
}
