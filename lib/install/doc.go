// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package install writes decrypted secrets to their destinations
// atomically, with the requested ownership and permissions in place
// before the first byte of plaintext reaches the disk.
//
// Each install is one atomic unit:
//
//  1. Resolve the owner and group to numeric IDs.
//  2. Create missing parent directories.
//  3. Remove staging files left behind by an interrupted earlier run.
//  4. If the destination already holds identical content with the
//     requested owner, group, and mode, stop ([Unchanged]).
//  5. Create ".<name>.<uuid>.staging" next to the destination with
//     O_CREAT|O_EXCL|O_NOFOLLOW and mode 0000, then fchown and fchmod
//     it to the final owner and mode.
//  6. Write the plaintext, fsync, close.
//  7. Rename over the destination and fsync the parent directory.
//
// A failure before the rename removes the staging file and leaves the
// destination untouched. A crash leaves at most a staging file, never
// readable by anyone the final file would not be readable by, and the
// next install of that destination removes it.
package install
