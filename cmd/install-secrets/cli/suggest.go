// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean" hint. Three covers a transposition plus a dropped
// character.
const maxSuggestDistance = 3

// closest returns the candidate nearest to input, or "" when none is
// within maxSuggestDistance. Ties go to the earlier candidate.
func closest(input string, candidates []string) string {
	best, bestDistance := "", maxSuggestDistance+1
	for _, candidate := range candidates {
		if distance := levenshtein(input, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, len(commands))
	for i, command := range commands {
		names[i] = command.Name
	}
	return closest(unknown, names)
}

// suggestFlag returns "--name" for the defined flag closest to the
// first flag in args that flagSet does not know, or "".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	unknown, ok := firstUnknownFlag(args, flagSet)
	if !ok {
		return ""
	}
	var names []string
	flagSet.VisitAll(func(flag *pflag.Flag) {
		names = append(names, flag.Name)
	})
	if match := closest(unknown, names); match != "" {
		return "--" + match
	}
	return ""
}

// firstUnknownFlag returns the bare name of the first flag argument
// that flagSet does not define. Arguments after "--" are positional.
func firstUnknownFlag(args []string, flagSet *pflag.FlagSet) (string, bool) {
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		if len(name) == 1 && flagSet.ShorthandLookup(name) != nil {
			continue
		}
		return name, true
	}
	return "", false
}

// levenshtein is the edit distance between a and b, computed over a
// single row sized by the shorter string.
func levenshtein(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}
	for j := 1; j <= len(b); j++ {
		diagonal := row[0]
		row[0] = j
		for i := 1; i <= len(a); i++ {
			above := row[i]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[i] = min(above+1, row[i-1]+1, diagonal+cost)
			diagonal = above
		}
	}
	return row[len(a)]
}
