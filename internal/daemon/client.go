package daemon

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Follower wait: 40 polls of 50 ms, ~2 s total.
const (
	lockPollInterval = 50 * time.Millisecond
	lockPollTries    = 40
)

// spawnerEnv carries the claiming client's pid into the spawned server.
// The claim on disk names the client, not the child, so the server uses
// this to recognize a claim written on its behalf.
const spawnerEnv = "SPALL_SPAWNER_PID"

// Acquire runs leader election for the data directory and returns the
// base URL of a healthy daemon, spawning one when none is running.
//
//  1. Exclusively create the lock with {pid: self, port: null}.
//  2. Success: leader. Spawn the detached server process, which takes
//     over the claim (it knows the claimant via SPALL_SPAWNER_PID) and
//     publishes its port; wait for that.
//  3. Failure: read the lock. A published healthy port means follower; a
//     dead claimant or unhealthy port clears the lock and retries; a
//     live claimant with no port yet is polled every 50 ms.
func Acquire(lockPath string, spawn func() error) (string, error) {
	lock := NewLockFile(lockPath)

	for attempt := 0; attempt < lockPollTries; attempt++ {
		err := lock.Claim(os.Getpid())
		if err == nil {
			// Leader: hand the claim to the spawned server, which
			// rewrites the lock with its own pid and port.
			if err := spawn(); err != nil {
				_ = lock.RemoveIfOwned(os.Getpid())
				return "", fmt.Errorf("failed to spawn daemon: %w", err)
			}
			return waitForPort(lock)
		}
		if !os.IsExist(err) {
			return "", err
		}

		info, readErr := lock.Read()
		if readErr != nil {
			if os.IsNotExist(readErr) {
				continue // raced with a release; retry the claim
			}
			return "", readErr
		}

		if info.Port != nil {
			if HealthOK(*info.Port) {
				return baseURL(*info.Port), nil
			}
			if err := lock.Remove(); err != nil {
				return "", err
			}
			continue
		}

		// Claimant still starting.
		if !processAlive(info.PID) {
			if err := lock.Remove(); err != nil {
				return "", err
			}
			continue
		}
		time.Sleep(lockPollInterval)
	}
	return "", fmt.Errorf("timed out waiting for daemon to start")
}

// SpawnDetached starts `spall serve` as a detached child of the current
// binary, inheriting the environment plus the spawner's pid so the child
// can take over the lock claim written for it.
func SpawnDetached(extraEnv []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	cmd := exec.Command(exe, "serve")
	cmd.Env = append(os.Environ(), spawnerEnv+"="+strconv.Itoa(os.Getpid()))
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	// Detach: the daemon outlives this client.
	return cmd.Process.Release()
}

// waitForPort polls the lock until the server publishes a healthy port.
func waitForPort(lock *LockFile) (string, error) {
	for i := 0; i < lockPollTries; i++ {
		info, err := lock.Read()
		if err == nil && info.Port != nil && HealthOK(*info.Port) {
			return baseURL(*info.Port), nil
		}
		time.Sleep(lockPollInterval)
	}
	return "", fmt.Errorf("daemon did not publish a port in time")
}

func baseURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// HealthOK probes GET /health on the loopback port.
func HealthOK(port int) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(baseURL(port) + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
