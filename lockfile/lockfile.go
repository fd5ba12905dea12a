// Package lockfile guards an output document against concurrent runs.
//
// A lock is a small YAML file next to the output path holding the owning
// process ID and start time. Creation is exclusive, so two runs targeting
// the same output cannot interleave their writes. Locks whose owner is
// gone are considered stale and replaced.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// Suffix is appended to the output path to form the lock path.
const Suffix = ".lock"

// Lock is a held run lock.
type Lock struct {
	path string
}

type payload struct {
	PID     int       `yaml:"pid"`
	Started time.Time `yaml:"started"`
	Output  string    `yaml:"output"`
}

// HeldError reports a lock owned by a live process.
type HeldError struct {
	Path string
	PID  int
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("output is locked by process %d (%s); remove the file if that run is gone", e.PID, e.Path)
}

// Acquire takes the lock for outputPath, replacing a stale one.
func Acquire(outputPath string) (*Lock, error) {
	path := outputPath + Suffix
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			data, merr := yaml.Marshal(payload{
				PID:     os.Getpid(),
				Started: time.Now(),
				Output:  outputPath,
			})
			if merr == nil {
				_, merr = f.Write(data)
			}
			f.Close()
			if merr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock %s: %w", path, merr)
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock %s: %w", path, err)
		}

		pid, readErr := ownerPID(path)
		if readErr == nil && processAlive(pid) {
			return nil, &HeldError{Path: path, PID: pid}
		}
		// Stale or unreadable lock. Remove and try once more.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("could not acquire lock %s", path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

func ownerPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var p payload
	if err := yaml.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	if p.PID <= 0 {
		return 0, fmt.Errorf("lock %s has no pid", path)
	}
	return p.PID, nil
}

// processAlive reports whether pid exists. Signal 0 probes without
// delivering anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
