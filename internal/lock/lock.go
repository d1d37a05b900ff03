// Package lock keeps a second daemon off a profile. The lock file records
// who holds it so clients can say which process to stop.
package lock

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// Owner describes the daemon holding a profile.
type Owner struct {
	PID     int
	Profile string
	Socket  string
	Started time.Time
}

// HeldError is returned when another process holds the lock.
type HeldError struct {
	Path  string
	Owner Owner
}

func (e *HeldError) Error() string {
	if e.Owner.Profile != "" {
		return fmt.Sprintf("profile %q is in use by PID %d (%s)", e.Owner.Profile, e.Owner.PID, e.Path)
	}
	return fmt.Sprintf("lock %s held by PID %d", e.Path, e.Owner.PID)
}

// Lock is an acquired flock on a profile's lock file.
type Lock struct {
	f     *os.File
	path  string
	owner Owner
}

// Acquire takes an exclusive, non-blocking flock on path and records
// owner in it. PID and Started are filled in when zero.
func Acquire(path string, owner Owner) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, eris.Wrap(err, "create lock dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, eris.Wrap(err, "open lock file")
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		held, _ := Read(path)
		return nil, &HeldError{Path: path, Owner: held}
	}

	if owner.PID == 0 {
		owner.PID = os.Getpid()
	}
	if owner.Started.IsZero() {
		owner.Started = time.Now().UTC()
	}
	if err := write(f, owner); err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "write lock file %s", path)
	}
	return &Lock{f: f, path: path, owner: owner}, nil
}

func write(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\nprofile=%s\nsocket=%s\nstarted=%s\n",
		o.PID, o.Profile, o.Socket, o.Started.Format(time.RFC3339))
	if err != nil {
		return err
	}
	return f.Sync()
}

// Owner returns what the lock recorded when it was taken.
func (l *Lock) Owner() Owner { return l.owner }

// Release drops the lock and removes the file. It is a no-op on a nil or
// released lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.f.Close()
	l.f = nil
	return err
}

// Read parses the lock file at path. A missing file yields a zero Owner
// and an error satisfying os.IsNotExist.
func Read(path string) (Owner, error) {
	f, err := os.Open(path)
	if err != nil {
		return Owner{}, err
	}
	defer func() { _ = f.Close() }()

	var o Owner
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "profile":
			o.Profile = value
		case "socket":
			o.Socket = value
		case "started":
			o.Started, _ = time.Parse(time.RFC3339, value)
		}
	}
	return o, sc.Err()
}
