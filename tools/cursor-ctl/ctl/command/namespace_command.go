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

	"github.com/spf13/cobra"
)

// NewNamespaceCommand returns the namespace subcommand.
func NewNamespaceCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "namespace",
		Short: "list namespaces with a cursor manager",
		Run: func(cmd *cobra.Command, args []string) {
			printResponse(cmd, http.MethodGet, apiPrefix+"/namespaces", nil)
		},
	}
	c.AddCommand(
		newDropNamespaceCommand(),
		newInvalidateNamespaceCommand(),
		newDropDatabaseCommand(),
	)
	return c
}

func newDropNamespaceCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "drop <namespace>",
		Short: "drop a namespace and destroy its cursors",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				usageError(cmd)
				return
			}
			reason, _ := cmd.Flags().GetString("reason")
			printResponse(cmd, http.MethodDelete, apiPath("namespaces", args[0])+formatReason(reason), nil)
		},
	}
	c.Flags().String("reason", "", "reason reported to cursor owners")
	return c
}

func newInvalidateNamespaceCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "invalidate <namespace>",
		Short: "kill the cursors of a namespace but keep idle ones for reporting",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				usageError(cmd)
				return
			}
			reason, _ := cmd.Flags().GetString("reason")
			input := map[string]string{"reason": reason}
			printResponse(cmd, http.MethodPost, apiPath("namespaces", args[0], "invalidate"), input)
		},
	}
	c.Flags().String("reason", "namespace invalidated", "reason reported to cursor owners")
	return c
}

func newDropDatabaseCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "drop-db <database>",
		Short: "drop every namespace of a database",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				usageError(cmd)
				return
			}
			reason, _ := cmd.Flags().GetString("reason")
			printResponse(cmd, http.MethodDelete, apiPath("databases", args[0])+formatReason(reason), nil)
		},
	}
	c.Flags().String("reason", "", "reason reported to cursor owners")
	return c
}
