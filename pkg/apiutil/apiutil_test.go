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

package apiutil

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/pingcap/check"
	"github.com/pingcap/errcode"
	"github.com/pkg/errors"
	"github.com/unrolled/render"
)

func Test(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testUtilSuite{})

type testUtilSuite struct{}

func (s *testUtilSuite) TestJSONResp(c *C) {
	rd := render.New(render.Options{IndentJSON: true})
	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{"a":1}`, http.StatusOK, ""},
		{`{"a":`, http.StatusBadRequest, "input"},
	}
	for _, t := range cases {
		w := httptest.NewRecorder()
		var data map[string]int
		err := ReadJSONRespondError(rd, w, ioutil.NopCloser(bytes.NewBufferString(t.body)), &data)
		if t.status == http.StatusOK {
			c.Assert(err, IsNil)
			c.Assert(data["a"], Equals, 1)
			continue
		}
		c.Assert(err, NotNil)
		c.Assert(w.Code, Equals, t.status)
		var resp errcode.JSONFormat
		c.Assert(json.Unmarshal(w.Body.Bytes(), &resp), IsNil)
		c.Assert(string(resp.Code), Equals, t.code)
	}
}

func (s *testUtilSuite) TestErrorResp(c *C) {
	rd := render.New(render.Options{})
	w := httptest.NewRecorder()
	ErrorResp(rd, w, errors.WithStack(errcode.NewNotFoundErr(errors.New("gone"))))
	c.Assert(w.Code, Equals, http.StatusNotFound)
	c.Assert(w.Header().Get("X-Error-Code"), Equals, "missing")

	w = httptest.NewRecorder()
	ErrorResp(rd, w, errors.New("plain"))
	c.Assert(w.Code, Equals, http.StatusInternalServerError)
}

func (s *testUtilSuite) TestParseInt64VarsField(c *C) {
	v, err := ParseInt64VarsField(map[string]string{"id": "42"}, "id")
	c.Assert(err, IsNil)
	c.Assert(v, Equals, int64(42))
	_, err = ParseInt64VarsField(map[string]string{"id": "x"}, "id")
	c.Assert(err, NotNil)
	c.Assert(err.Field(), Equals, "id")
	_, err = ParseInt64VarsField(map[string]string{}, "id")
	c.Assert(err, NotNil)
}
