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
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCursorCommand returns the cursors subcommand.
func NewCursorCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "cursor <id>",
		Short: "show the cursor with the given id, or list all cursors",
		Run:   showCursorCommandFunc,
	}
	c.Flags().String("ns", "", "only list cursors of the namespace")
	c.AddCommand(
		NewKillCursorCommand(),
		NewKillCursorsCommand(),
		NewTimeoutCursorsCommand(),
	)
	return c
}

func showCursorCommandFunc(cmd *cobra.Command, args []string) {
	switch len(args) {
	case 0:
		path := apiPrefix + "/cursors"
		if ns, _ := cmd.Flags().GetString("ns"); ns != "" {
			path += "?ns=" + url.QueryEscape(ns)
		}
		printResponse(cmd, http.MethodGet, path, nil)
	case 1:
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			cmd.Println("cursor id should be a number")
			return
		}
		printResponse(cmd, http.MethodGet, apiPath("cursors", args[0]), nil)
	default:
		usageError(cmd)
	}
}

// NewKillCursorCommand returns the command killing one cursor by id.
func NewKillCursorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <id>",
		Short: "kill a cursor wherever it is registered",
		Run:   killCursorCommandFunc,
	}
}

func killCursorCommandFunc(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		usageError(cmd)
		return
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		cmd.Println("cursor id should be a number")
		return
	}
	printResponse(cmd, http.MethodDelete, apiPath("cursors", args[0]), nil)
}

// NewKillCursorsCommand returns the command killing cursors of one namespace.
func NewKillCursorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kill-ns <namespace> <id>...",
		Short: "kill cursors of a namespace and report each outcome",
		Run:   killCursorsCommandFunc,
	}
}

func killCursorsCommandFunc(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		usageError(cmd)
		return
	}
	ids := make([]int64, 0, len(args)-1)
	for _, arg := range args[1:] {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			cmd.Println("cursor id should be a number")
			return
		}
		ids = append(ids, id)
	}
	input := map[string]interface{}{
		"ns":  args[0],
		"ids": ids,
	}
	printResponse(cmd, http.MethodPost, apiPrefix+"/cursors/kill", input)
}

// NewTimeoutCursorsCommand returns the command running an idle sweep.
func NewTimeoutCursorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "timeout",
		Short: "kill every idle cursor past the timeout now",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodPost, apiPrefix+"/cursors/timeout", nil)
		},
	}
}
