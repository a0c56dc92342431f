// Copyright 2016 PingCAP, Inc.
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

package apiutil

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/pingcap/errcode"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"github.com/unrolled/render"
	"go.uber.org/zap"
)

// JSONError lets callers check for just one error type
type JSONError struct {
	Err error
}

func (e JSONError) Error() string {
	return e.Err.Error()
}

// FieldError connects an error to a particular field
type FieldError struct {
	error
	field string
}

// NewFieldError creates a FieldError for field.
func NewFieldError(field string, err error) FieldError {
	return FieldError{error: err, field: field}
}

// Field returns the name of the offending field.
func (e FieldError) Field() string {
	return e.field
}

// ReadJSON reads a JSON body into data. Decoding failures are JSONError.
func ReadJSON(r io.ReadCloser, data interface{}) error {
	defer r.Close()

	b, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = json.Unmarshal(b, data); err != nil {
		return JSONError{Err: errors.WithStack(err)}
	}
	return nil
}

// ReadJSONRespondError reads a JSON body into data and writes the error
// response itself on failure.
func ReadJSONRespondError(rd *render.Render, w http.ResponseWriter, body io.ReadCloser, data interface{}) error {
	err := ReadJSON(body, data)
	if err == nil {
		return nil
	}
	var errCode errcode.ErrorCode
	if jsonErr, ok := errors.Cause(err).(JSONError); ok {
		errCode = errcode.NewInvalidInputErr(jsonErr.Err)
	} else {
		errCode = errcode.NewInternalErr(err)
	}
	ErrorResp(rd, w, errCode)
	return err
}

// ErrorResp responds with the HTTP status of the error code found in
// err's chain, or 500 for errors without a code.
func ErrorResp(rd *render.Render, w http.ResponseWriter, err error) {
	if err == nil {
		log.Error("nil is given to ErrorResp")
		rd.JSON(w, http.StatusInternalServerError, "nil error")
		return
	}
	if errCode := errcode.CodeChain(err); errCode != nil {
		w.Header().Set("X-Error-Code", errCode.Code().CodeStr().String())
		rd.JSON(w, errCode.Code().HTTPCode(), errcode.NewJSONFormat(errCode))
		return
	}
	log.Warn("responding with an uncoded error", zap.Error(err))
	rd.JSON(w, http.StatusInternalServerError, err.Error())
}

// ParseInt64VarsField parses a path variable as int64.
func ParseInt64VarsField(vars map[string]string, varName string) (int64, *FieldError) {
	str, ok := vars[varName]
	if !ok {
		return 0, &FieldError{field: varName, error: errors.Errorf("field %s not present", varName)}
	}
	parsed, err := strconv.ParseInt(str, 10, 64)
	if err == nil {
		return parsed, nil
	}
	return parsed, &FieldError{field: varName, error: errors.WithStack(err)}
}
