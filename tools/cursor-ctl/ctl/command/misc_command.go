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
	"time"

	"github.com/spf13/cobra"
)

// NewAuditCommand returns the audit subcommand.
func NewAuditCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "audit",
		Short: "show recent audit events",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodGet, apiPrefix+"/audit", nil)
		},
	}
	c.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "clear recent audit events",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodDelete, apiPrefix+"/audit", nil)
		},
	})
	return c
}

// NewConfigCommand returns the config subcommand.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "show the server config",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodGet, apiPrefix+"/config", nil)
		},
	}
}

// NewLogCommand returns the log subcommand.
func NewLogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "log [fatal|error|warn|info|debug]",
		Short: "set the server log level",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				usageError(cmd)
				return
			}
			printResponse(cmd, http.MethodPost, apiPrefix+"/admin/log", args[0])
		},
	}
}

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show the server status",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodGet, apiPrefix+"/status", nil)
		},
	}
}

// NewPingCommand returns the ping subcommand.
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "show the round trip time to the server",
		Run: func(cmd *cobra.Command, args []string) {
			start := time.Now()
			if _, err := doRequest(cmd, http.MethodGet, pingPrefix, nil); err != nil {
				cmd.Println(err)
				return
			}
			cmd.Println("time:", time.Since(start))
		},
	}
}
