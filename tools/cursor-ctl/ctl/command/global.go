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

package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	apiPrefix     = "/cursor/api/v1"
	pingPrefix    = "/cursor/ping"
	userHeader    = "X-Cursor-User"
	sessionHeader = "X-Cursor-Session"
	actionHeader  = "X-Cursor-Action"
)

var dialClient = &http.Client{Timeout: 10 * time.Second}

func getEndpoint(cmd *cobra.Command) string {
	addr, err := cmd.Flags().GetString("url")
	if err != nil || addr == "" {
		addr = "http://127.0.0.1:27020"
	}
	if !strings.HasPrefix(addr, "http") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/")
}

func doRequest(cmd *cobra.Command, method, path string, input interface{}) (string, error) {
	var body *bytes.Reader
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return "", errors.WithStack(err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, getEndpoint(cmd)+path, body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if input != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setIdentity(cmd, req)

	resp, err := dialClient.Do(req)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer resp.Body.Close()
	content, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("[%d] %s", resp.StatusCode, strings.TrimSpace(string(content)))
	}
	return string(content), nil
}

func setIdentity(cmd *cobra.Command, req *http.Request) {
	if users, _ := cmd.Flags().GetStringSlice("user"); len(users) > 0 {
		req.Header.Set(userHeader, strings.Join(users, ","))
	}
	if sid, _ := cmd.Flags().GetString("session"); sid != "" {
		req.Header.Set(sessionHeader, sid)
	}
	if actions, _ := cmd.Flags().GetStringSlice("action"); len(actions) > 0 {
		req.Header.Set(actionHeader, strings.Join(actions, ","))
	}
}

func apiPath(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return apiPrefix + "/" + strings.Join(escaped, "/")
}

// printResponse runs the request and prints its body.
func printResponse(cmd *cobra.Command, method, path string, input interface{}) {
	r, err := doRequest(cmd, method, path, input)
	if err != nil {
		cmd.Printf("Failed: %s\n", err)
		return
	}
	if strings.TrimSpace(r) == "null" {
		cmd.Println("Success!")
		return
	}
	cmd.Println(r)
}

func usageError(cmd *cobra.Command) {
	cmd.Println(cmd.UsageString())
}

func formatReason(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf("?reason=%s", url.QueryEscape(reason))
}
