// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/fleet-secrets/cmd/install-secrets/cli"
	"github.com/bureau-foundation/fleet-secrets/lib/install"
	"github.com/bureau-foundation/fleet-secrets/lib/planner"
)

type installParams struct {
	sourceParams
	Parallel int `flag:"parallel,p" desc:"secrets processed concurrently (default from config, else 1)"`
}

func installCommand(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	var params installParams

	return &cli.Command{
		Name:    "install",
		Summary: "Decrypt and install the secrets this host holds keys for",
		Description: `Load the manifest, open the keystore, and install every secret whose
authorized keys include a key present on this host. Secrets for other
hosts are skipped. A secret that fails to decrypt or install does not
stop the others.

Exit status is 0 when nothing failed, 1 when any secret failed, and 2
when the configuration, manifest, or keystore is unusable (nothing is
written in that case).`,
		Usage: "install-secrets install --manifest PATH [flags]",
		Examples: []cli.Example{
			{
				Description: "Install with the SSH host key",
				Command:     "install-secrets install --manifest /etc/fleet/secrets.json",
			},
			{
				Description: "Use a directory of age identities and a JSON summary",
				Command:     "install-secrets install -m secrets.yaml -k /var/lib/fleet/keys --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("install", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runInstall(ctx, &params, stdout, stderr)
		},
	}
}

func runInstall(ctx context.Context, params *installParams, stdout, stderr io.Writer) error {
	session, err := openSession(&params.sourceParams, "install", stderr)
	if err != nil {
		return err
	}
	defer session.Close()

	parallelism := session.config.Parallelism
	if params.Parallel > 0 {
		parallelism = params.Parallel
	}
	directoryMode, _ := session.config.DirectoryFileMode()

	installer := install.New(install.Options{
		DirectoryMode: directoryMode,
		Logger:        session.logger,
	})
	run := planner.New(session.keystore, installer, planner.Options{
		Parallelism: parallelism,
		Logger:      session.logger,
	})

	report := run.Run(ctx, session.descriptors)

	if done, err := params.EmitJSON(stdout, newInstallSummary(report)); done {
		if err != nil {
			return err
		}
	} else if err := writeInstallSummary(stdout, report); err != nil {
		return err
	}

	if !report.Success() {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
