// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/fleet-secrets/cmd/install-secrets/cli"
	"github.com/bureau-foundation/fleet-secrets/lib/version"
)

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			_, err := fmt.Fprintf(stdout, "install-secrets %s\n", version.Full())
			return err
		},
	}
}
