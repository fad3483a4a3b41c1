// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/fleet-secrets/lib/secret"
)

// DefaultDirectoryMode is applied to parent directories the installer
// has to create.
const DefaultDirectoryMode fs.FileMode = 0o755

const stagingSuffix = ".staging"

// Outcome is the result of a successful install.
type Outcome int

const (
	// Installed means the destination was (re)written.
	Installed Outcome = iota

	// Unchanged means the destination already held the same content
	// with the same owner, group, and mode. Nothing was written.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case Unchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// InstallError reports a failed install. Unless Replaced is set, the
// destination is left as it was before the attempt.
type InstallError struct {
	Destination string

	// Op names the step that failed ("resolving owner", "writing").
	Op string

	// Replaced is set when the failure came after the rename: the new
	// content is at the destination, but the directory entry may not
	// be durable yet.
	Replaced bool

	Err error
}

func (e *InstallError) Error() string {
	if e.Replaced {
		return fmt.Sprintf("installing %s: %s (new content in place): %v", e.Destination, e.Op, e.Err)
	}
	return fmt.Sprintf("installing %s: %s: %v", e.Destination, e.Op, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Request describes one secret to install.
type Request struct {
	Destination string
	Owner       string
	Group       string
	Mode        fs.FileMode

	// Plaintext is read but not closed; the caller owns it.
	Plaintext *secret.Buffer
}

// Options configures an Installer.
type Options struct {
	// DirectoryMode is the mode for created parent directories.
	// Zero means DefaultDirectoryMode.
	DirectoryMode fs.FileMode

	// Logger receives debug logs about staging cleanup and directory
	// creation. Nil discards.
	Logger *slog.Logger
}

// Installer performs atomic installs. It holds no per-destination
// state, so one Installer may serve concurrent installs to distinct
// destinations.
type Installer struct {
	directoryMode fs.FileMode
	logger        *slog.Logger
	resolver      principalResolver
	syncDirectory func(directory string) error
}

// New returns an Installer configured by options.
func New(options Options) *Installer {
	if options.DirectoryMode == 0 {
		options.DirectoryMode = DefaultDirectoryMode
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Installer{
		directoryMode: options.DirectoryMode.Perm(),
		logger:        options.Logger,
		resolver:      systemResolver{},
		syncDirectory: syncDirectory,
	}
}

// Install writes request.Plaintext to request.Destination.
func (i *Installer) Install(request Request) (Outcome, error) {
	destination := filepath.Clean(request.Destination)
	fail := func(op string, err error) (Outcome, error) {
		return Installed, &InstallError{Destination: destination, Op: op, Err: err}
	}

	if !filepath.IsAbs(destination) {
		return fail("validating destination", errors.New("destination must be an absolute path"))
	}
	if request.Plaintext == nil {
		return fail("validating request", errors.New("no plaintext"))
	}
	mode := request.Mode.Perm()

	uid, err := i.resolver.user(request.Owner)
	if err != nil {
		return fail("resolving owner", err)
	}
	gid, err := i.resolver.group(request.Group)
	if err != nil {
		return fail("resolving group", err)
	}

	directory := filepath.Dir(destination)
	if err := i.ensureDirectory(directory); err != nil {
		return fail("creating parent directory", err)
	}

	if _, err := i.removeStaging(destination); err != nil {
		return fail("removing stale staging files", err)
	}

	unchanged, err := matches(destination, request.Plaintext, uid, gid, mode)
	if err != nil {
		return fail("inspecting destination", err)
	}
	if unchanged {
		return Unchanged, nil
	}

	stagingPath := filepath.Join(directory, "."+filepath.Base(destination)+"."+uuid.NewString()+stagingSuffix)
	if err := writeStaging(stagingPath, request.Plaintext, uid, gid, mode); err != nil {
		os.Remove(stagingPath)
		return fail("writing staging file", err)
	}

	if err := os.Rename(stagingPath, destination); err != nil {
		os.Remove(stagingPath)
		return fail("renaming into place", err)
	}

	if err := i.syncDirectory(directory); err != nil {
		return Installed, &InstallError{Destination: destination, Op: "syncing parent directory", Replaced: true, Err: err}
	}

	return Installed, nil
}

// ensureDirectory creates directory and any missing parents. An
// existing path that is not a directory is an error.
func (i *Installer) ensureDirectory(directory string) error {
	info, err := os.Stat(directory)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", directory)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(directory, i.directoryMode); err != nil {
		return err
	}
	i.logger.Debug("created parent directory", "path", directory, "mode", fmt.Sprintf("%#o", i.directoryMode))
	return nil
}

// removeStaging deletes leftover staging files for destination and
// returns how many were removed.
func (i *Installer) removeStaging(destination string) (int, error) {
	directory := filepath.Dir(destination)
	entries, err := os.ReadDir(directory)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !isStagingFor(entry.Name(), filepath.Base(destination)) {
			continue
		}
		path := filepath.Join(directory, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
		i.logger.Info("removed leftover staging file", "path", path)
	}
	return removed, nil
}

// isStagingFor reports whether name is a staging file created for a
// destination with base name base.
func isStagingFor(name, base string) bool {
	prefix := "." + base + "."
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, stagingSuffix) {
		return false
	}
	middle := name[len(prefix) : len(name)-len(stagingSuffix)]
	_, err := uuid.Parse(middle)
	return err == nil && len(middle) == 36
}

// matches reports whether destination already holds exactly plaintext
// with the given ownership and mode. A missing destination does not
// match. A destination that is a directory is an error.
func matches(destination string, plaintext *secret.Buffer, uid, gid int, mode fs.FileMode) (bool, error) {
	info, err := os.Lstat(destination)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, errors.New("destination is a directory")
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if info.Mode().Perm() != mode || info.Size() != int64(plaintext.Len()) {
		return false, nil
	}
	return contentMatches(destination, plaintext, uid, gid)
}

// contentMatches compares ownership through the opened descriptor and
// the content by BLAKE3 digest.
func contentMatches(destination string, plaintext *secret.Buffer, uid, gid int) (bool, error) {
	fd, err := unix.Open(destination, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		// Unreadable (a 0000 file without CAP_DAC_OVERRIDE), swapped
		// for a symlink, or gone: reinstall.
		return false, nil
	}
	file := os.NewFile(uintptr(fd), destination)
	defer file.Close()

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return false, err
	}
	if int(stat.Uid) != uid || int(stat.Gid) != gid {
		return false, nil
	}

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return false, err
	}
	existing := hasher.Sum(nil)
	wanted := blake3.Sum256(plaintext.Bytes())
	return subtle.ConstantTimeCompare(existing, wanted[:]) == 1, nil
}

// writeStaging creates path with no permissions, assigns final
// ownership and mode, and only then writes the plaintext.
func writeStaging(path string, plaintext *secret.Buffer, uid, gid int, mode fs.FileMode) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	file := os.NewFile(uintptr(fd), path)

	if err := unix.Fchown(fd, uid, gid); err != nil {
		file.Close()
		return fmt.Errorf("setting ownership to %d:%d: %w", uid, gid, err)
	}
	if err := unix.Fchmod(fd, uint32(mode)); err != nil {
		file.Close()
		return fmt.Errorf("setting mode %#o: %w", mode, err)
	}

	// Write, sync, close. On any error the caller removes the file.
	if _, err := plaintext.WriteTo(file); err != nil {
		file.Close()
		return fmt.Errorf("writing: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	return nil
}

func syncDirectory(directory string) error {
	handle, err := os.Open(directory)
	if err != nil {
		return err
	}
	defer handle.Close()
	return handle.Sync()
}
