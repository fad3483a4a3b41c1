// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/fleet-secrets/cmd/install-secrets/cli"
)

// exitUsage is the exit status for configuration-class errors: bad
// flags, an unusable config file, manifest, or keystore.
const exitUsage = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return rootCommand(ctx, stdout, stderr).Execute(args)
}

// exitCode maps run's error to a process exit status. Commands that
// print their own output return an ExitError with the desired code;
// anything else is reported on stderr as a configuration-class error.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		return coder.ExitCode()
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitUsage
}

func rootCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:       "install-secrets",
		Summary:    "Decrypt and install fleet secrets for this host",
		HelpOutput: stderr,
		Description: `install-secrets reads a secret manifest, selects the secrets this host
holds a decryption key for, decrypts them, and installs each one
atomically at its destination with the requested owner, group, and mode.`,
		Subcommands: []*cli.Command{
			installCommand(ctx, stdout, stderr),
			planCommand(stdout, stderr),
			versionCommand(stdout),
		},
	}
}
