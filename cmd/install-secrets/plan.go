// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/fleet-secrets/cmd/install-secrets/cli"
	"github.com/bureau-foundation/fleet-secrets/lib/planner"
)

func planCommand(stdout, stderr io.Writer) *cli.Command {
	var params sourceParams

	return &cli.Command{
		Name:    "plan",
		Summary: "Show which secrets this host would install",
		Description: `Load the manifest and keystore and report, for each secret, whether
this host holds one of its authorized keys. Nothing is decrypted and
nothing is written.`,
		Usage: "install-secrets plan --manifest PATH [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("plan", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}

			session, err := openSession(&params, "plan", stderr)
			if err != nil {
				return err
			}
			defer session.Close()

			decisions := planner.New(session.keystore, nil, planner.Options{Logger: session.logger}).
				Plan(session.descriptors)

			if done, err := params.EmitJSON(stdout, newPlanSummary(decisions)); done {
				return err
			}
			return writePlanSummary(stdout, decisions)
		},
	}
}
