package diagnose

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// invokerIDs returns the uid/gid of the unprivileged user who invoked
// sudo, when the process runs elevated on their behalf. ok is false when
// not running as root or when the sudo environment is absent.
func invokerIDs() (uid, gid int, ok bool) {
	if os.Geteuid() != 0 {
		return 0, 0, false
	}
	uid, err := strconv.Atoi(os.Getenv("SUDO_UID"))
	if err != nil || uid <= 0 {
		return 0, 0, false
	}
	gid, err = strconv.Atoi(os.Getenv("SUDO_GID"))
	if err != nil || gid <= 0 {
		return 0, 0, false
	}
	return uid, gid, true
}

// chownToInvoker reassigns a single path to the invoking user. Artifacts
// must never be left root-owned in the user's output directory.
func chownToInvoker(path string) {
	if uid, gid, ok := invokerIDs(); ok {
		if err := os.Chown(path, uid, gid); err != nil {
			log.Printf("[diag] chown %s: %v", path, err)
		}
	}
}

// chownTreeToInvoker reassigns the run directory and everything the
// batch's jobs wrote under it.
func chownTreeToInvoker(dir string) {
	uid, gid, ok := invokerIDs()
	if !ok {
		return
	}
	err := filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return nil // a disappeared artifact is not worth failing the walk
		}
		if err := os.Chown(path, uid, gid); err != nil {
			log.Printf("[diag] chown %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("[diag] ownership fix-up for %s: %v", dir, err)
	}
}
