// Package daemon implements the spall server lifecycle: lock-file leader
// election, the HTTP surface with SSE fan-out, idle shutdown, and the
// connect-or-spawn client.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockInfo is the lock file contents. Port is null while the claimant is
// still starting.
type LockInfo struct {
	PID  int  `json:"pid"`
	Port *int `json:"port"`
}

// LockFile is the daemon's mutual-exclusion primitive at
// {data-dir}/server.lock.
type LockFile struct {
	path string
}

// NewLockFile creates a handle on the lock path.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// Path returns the lock file path.
func (l *LockFile) Path() string {
	return l.path
}

// Claim exclusively creates the lock with {pid, port: null}. Fails if the
// file already exists.
func (l *LockFile) Claim(pid int) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(LockInfo{PID: pid})
}

// Read returns the lock contents, or os.ErrNotExist.
func (l *LockFile) Read() (*LockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt lock file %s: %w", l.path, err)
	}
	return &info, nil
}

// Write overwrites the lock unconditionally. Used by the ready server to
// publish its port and by --force takeover.
func (l *LockFile) Write(info LockInfo) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, append(data, '\n'), 0o644)
}

// Remove deletes the lock file.
func (l *LockFile) Remove() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveIfOwned deletes the lock only when its pid still equals pid, so a
// --force replacement's fresh lock survives the old daemon's shutdown.
func (l *LockFile) RemoveIfOwned(pid int) error {
	info, err := l.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.PID != pid {
		return nil
	}
	return l.Remove()
}

// processAlive probes a pid with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
