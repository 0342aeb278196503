package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/logging"
)

func newGuardServer(t *testing.T, lockPath string) *Server {
	t.Helper()
	return &Server{
		cfg:  config.New(),
		log:  logging.Discard(),
		lock: NewLockFile(lockPath),
	}
}

func TestGuardStartup_TakesOverSpawnerClaim(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")

	// A client claims the lock with its own pid before spawning the
	// server, then hands the pid down through the environment. The test
	// runner's parent stands in for the live client.
	spawner := os.Getppid()
	require.NoError(t, NewLockFile(lockPath).Claim(spawner))
	t.Setenv(spawnerEnv, strconv.Itoa(spawner))

	s := newGuardServer(t, lockPath)
	require.NoError(t, s.guardStartup())

	// The server now owns the claim; its port is not published yet.
	info, err := s.lock.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Nil(t, info.Port)
}

func TestGuardStartup_RefusesForeignStartingClaim(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	t.Setenv(spawnerEnv, "")

	// A live process we were not spawned by holds a port-less claim.
	foreign := os.Getppid()
	require.NoError(t, NewLockFile(lockPath).Claim(foreign))

	s := newGuardServer(t, lockPath)
	err := s.guardStartup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still starting")

	// The foreign claim is left untouched.
	info, readErr := s.lock.Read()
	require.NoError(t, readErr)
	assert.Equal(t, foreign, info.PID)
}

func TestGuardStartup_AcceptsOwnClaim(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	t.Setenv(spawnerEnv, "")
	require.NoError(t, NewLockFile(lockPath).Claim(os.Getpid()))

	s := newGuardServer(t, lockPath)
	require.NoError(t, s.guardStartup())

	info, err := s.lock.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
}

func TestGuardStartup_ClearsDeadClaim(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	t.Setenv(spawnerEnv, "")
	require.NoError(t, NewLockFile(lockPath).Claim(99999999))

	s := newGuardServer(t, lockPath)
	require.NoError(t, s.guardStartup())

	info, err := s.lock.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
}
