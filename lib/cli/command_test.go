// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "assetstore",
		Subcommands: []*Command{
			{
				Name: "project",
				Subcommands: []*Command{
					{
						Name: "list",
						Run: func(ctx context.Context, args []string) error {
							called = "project list"
							receivedArgs = args
							return nil
						},
					},
				},
			},
			{
				Name: "put",
				Run: func(ctx context.Context, args []string) error {
					called = "put"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"project", "list", "extra"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "project list" {
		t.Errorf("dispatched to %q, want %q", called, "project list")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra" {
		t.Errorf("args = %v, want [extra]", receivedArgs)
	}
}

func TestExecutePassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	var got any
	command := &Command{
		Name: "sync",
		Run: func(ctx context.Context, args []string) error {
			got = ctx.Value(key{})
			return nil
		},
	}
	if err := command.Execute(ctx, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got != "marker" {
		t.Errorf("context value = %v, want marker", got)
	}
}

func TestExecuteFlagParsing(t *testing.T) {
	var project string
	var target string

	command := &Command{
		Name: "get",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			flagSet.StringVar(&project, "project", "default", "project id")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--project", "course-101", "9b2f"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if project != "course-101" {
		t.Errorf("project = %q, want course-101", project)
	}
	if target != "9b2f" {
		t.Errorf("target = %q, want 9b2f", target)
	}
}

func TestExecuteUnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "list",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.Bool("pending", false, "only pending")
			flagSet.String("project", "", "project id")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--pendign"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	message := err.Error()
	if !strings.Contains(message, "did you mean --pending") {
		t.Errorf("error = %q, want suggestion for --pending", message)
	}
	if !strings.Contains(message, "--help") {
		t.Errorf("error = %q, should point to --help", message)
	}

	err = command.Execute(context.Background(), []string{"--zzzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want an error without a suggestion", err)
	}
}

func TestExecuteUnknownSubcommand(t *testing.T) {
	root := &Command{
		Name: "assetstore",
		Subcommands: []*Command{
			{Name: "resolve"},
			{Name: "rename"},
			{Name: "stats"},
		},
	}

	err := root.Execute(context.Background(), []string{"resolv"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `did you mean "resolve"`) {
		t.Errorf("error = %q, want suggestion for resolve", err.Error())
	}

	err = root.Execute(context.Background(), []string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want an error without a suggestion", err)
	}
}

func TestExecuteHelp(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			var output bytes.Buffer
			root := &Command{
				Name:    "assetstore",
				Summary: "Content-addressed asset store",
				Output:  &output,
				Subcommands: []*Command{
					{Name: "put", Summary: "Store a file"},
				},
			}

			if err := root.Execute(context.Background(), []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
			if !strings.Contains(output.String(), "Store a file") {
				t.Errorf("help output missing subcommand summary:\n%s", output.String())
			}
		})
	}
}

func TestExecuteSubcommandHelpInheritsOutput(t *testing.T) {
	var output bytes.Buffer
	var params struct {
		Project string `flag:"project,p" desc:"project id" default:"default"`
	}
	root := &Command{
		Name:   "assetstore",
		Output: &output,
		Subcommands: []*Command{
			{
				Name:    "list",
				Summary: "List assets",
				Flags:   func() *pflag.FlagSet { return FlagsFromParams("list", &params) },
				Examples: []Example{
					{Description: "List a course", Command: "assetstore list -p course-101"},
				},
				Run: func(ctx context.Context, args []string) error { return nil },
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"list", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	help := output.String()
	for _, want := range []string{"assetstore list [flags]", "--project", "List a course"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	root := &Command{
		Name:        "assetstore",
		Output:      &bytes.Buffer{},
		Subcommands: []*Command{{Name: "put"}},
	}
	if err := root.Execute(context.Background(), nil); err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "put", 3},
		{"sync", "sync", 0},
		{"sycn", "sync", 2},
		{"rename", "resolve", 4},
		{"stat", "stats", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := levenshtein(tt.b, tt.a); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}
