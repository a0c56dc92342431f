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
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewSessionCommand returns the session subcommand.
func NewSessionCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "session",
		Short: "list sessions owning cursors",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodGet, apiPrefix+"/sessions", nil)
		},
	}
	c.AddCommand(&cobra.Command{
		Use:   "end <session-id>",
		Short: "end a session and kill its cursors",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				usageError(cmd)
				return
			}
			if _, err := uuid.Parse(args[0]); err != nil {
				cmd.Println("session id should be a uuid")
				return
			}
			printResponse(cmd, http.MethodDelete, apiPath("sessions", args[0]), nil)
		},
	})
	return c
}
