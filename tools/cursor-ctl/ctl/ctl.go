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

package ctl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/pingcap-incubator/tinycursor/tools/cursor-ctl/ctl/command"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandFlags are the flags shared by every command.
type CommandFlags struct {
	URL     string
	Users   []string
	Session string
	Actions []string
}

func (f *CommandFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.URL, "url", "u", "http://127.0.0.1:27020", "address of the cursor server")
	fs.StringSliceVar(&f.Users, "user", nil, "authenticated users as user@db")
	fs.StringVar(&f.Session, "session", "", "logical session id")
	fs.StringSliceVar(&f.Actions, "action", nil, "privileged actions granted to the caller")
}

// args turns the flags back into command line arguments so an
// interactive line runs with the flags the shell was started with.
func (f *CommandFlags) args() []string {
	args := []string{"-u", f.URL}
	for _, u := range f.Users {
		args = append(args, "--user", u)
	}
	if f.Session != "" {
		args = append(args, "--session", f.Session)
	}
	for _, a := range f.Actions {
		args = append(args, "--action", a)
	}
	return args
}

// InitCommand builds the root command.
func InitCommand() *cobra.Command {
	return initCommand(&CommandFlags{})
}

func initCommand(commandFlags *CommandFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cursor-ctl",
		Short: "cursor server control tool",
	}
	commandFlags.register(rootCmd.PersistentFlags())
	rootCmd.AddCommand(
		command.NewCursorCommand(),
		command.NewNamespaceCommand(),
		command.NewSessionCommand(),
		command.NewAuditCommand(),
		command.NewConfigCommand(),
		command.NewLogCommand(),
		command.NewStatusCommand(),
		command.NewPingCommand(),
	)
	cobra.EnablePrefixMatching = true
	return rootCmd
}

// Start runs the command line. With -i it reads commands from a prompt
// until exit.
func Start(args []string) {
	interactive := false
	rest := args[:0:0]
	for _, arg := range args {
		if arg == "-i" || arg == "--interactive" {
			interactive = true
			continue
		}
		rest = append(rest, arg)
	}
	if !interactive {
		run(os.Stdout, rest)
		return
	}

	commandFlags := &CommandFlags{}
	// Parse the shared flags once so every line inherits them.
	fs := pflag.NewFlagSet("cursor-ctl", pflag.ContinueOnError)
	commandFlags.register(fs)
	if err := fs.Parse(rest); err != nil {
		fmt.Println(err)
		return
	}
	loop(commandFlags)
}

func run(out io.Writer, args []string) {
	rootCmd := InitCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOutput(out)
	if err := rootCmd.Execute(); err != nil {
		rootCmd.Println(rootCmd.UsageString())
	}
}

func loop(commandFlags *CommandFlags) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[31m»\033[0m ",
		HistoryFile:       "/tmp/cursor-ctl.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer l.Close()

	for {
		line, err := l.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return
			}
			continue
		}
		if strings.TrimSpace(line) == "exit" {
			return
		}
		runLine(l.Stdout(), commandFlags, line)
	}
}

// runLine executes one interactive line and reports whether it parsed.
func runLine(out io.Writer, commandFlags *CommandFlags, line string) bool {
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(out, "parse command err: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}
	run(out, append(commandFlags.args(), args...))
	return true
}
