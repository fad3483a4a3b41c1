// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"fmt"
	"os/user"
	"strconv"
)

// principalResolver maps owner and group names to numeric IDs.
type principalResolver interface {
	user(name string) (int, error)
	group(name string) (int, error)
}

// systemResolver consults the host's user and group databases. Decimal
// strings are taken as IDs without a lookup, so a secret can be
// installed for an ID that has no passwd entry.
type systemResolver struct{}

func (systemResolver) user(name string) (int, error) {
	if id, ok := numericID(name); ok {
		return id, nil
	}
	account, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	return parseID(account.Uid)
}

func (systemResolver) group(name string) (int, error) {
	if id, ok := numericID(name); ok {
		return id, nil
	}
	group, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	return parseID(group.Gid)
}

func numericID(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(id), true
}

func parseID(value string) (int, error) {
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("non-numeric ID %q", value)
	}
	return int(id), nil
}
