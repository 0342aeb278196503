package daemon

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon serves /health on a loopback port and returns that port.
func fakeDaemon(t *testing.T) int {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

// closedPort returns a loopback port nothing is listening on.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestAcquire_SpawnsWhenNoDaemon(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	port := fakeDaemon(t)

	spawned := 0
	base, err := Acquire(lockPath, func() error {
		spawned++
		// The spawned server publishes the lock under its own pid, which
		// is never the client's.
		return NewLockFile(lockPath).Write(LockInfo{PID: 99999, Port: &port})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, spawned)
	assert.Equal(t, baseURL(port), base)
}

func TestAcquire_FollowsHealthyDaemon(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	port := fakeDaemon(t)
	require.NoError(t, NewLockFile(lockPath).Write(LockInfo{PID: 99999, Port: &port}))

	base, err := Acquire(lockPath, func() error {
		t.Fatal("must not spawn over a healthy daemon")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, baseURL(port), base)
}

func TestAcquire_ClearsUnhealthyLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	dead := closedPort(t)
	require.NoError(t, NewLockFile(lockPath).Write(LockInfo{PID: 99999, Port: &dead}))

	port := fakeDaemon(t)
	base, err := Acquire(lockPath, func() error {
		return NewLockFile(lockPath).Write(LockInfo{PID: 99999, Port: &port})
	})
	require.NoError(t, err)
	assert.Equal(t, baseURL(port), base)
}

func TestAcquire_SpawnFailureReleasesLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")

	_, err := Acquire(lockPath, func() error {
		return assert.AnError
	})
	require.Error(t, err)

	// The failed leader's claim is gone, so the next caller can elect.
	_, err = NewLockFile(lockPath).Read()
	assert.True(t, os.IsNotExist(err))
}

func TestHealthOK(t *testing.T) {
	assert.True(t, HealthOK(fakeDaemon(t)))
	assert.False(t, HealthOK(closedPort(t)))
}
