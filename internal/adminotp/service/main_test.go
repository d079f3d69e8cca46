package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store/drivers/sqlite"
	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "adminotp-service")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAccount(t *testing.T, s *sqlite.Store, id, email string) domain.Account {
	t.Helper()
	a := domain.Account{ID: id, Email: email, IsActive: true}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))
	return a
}

// countingHasher counts hash operations so tests can compare the work done
// on different branches.
type countingHasher struct {
	Argon2Hasher
	hashes   atomic.Int32
	verifies atomic.Int32
}

func (h *countingHasher) Hash(secret string) (string, error) {
	h.hashes.Add(1)
	return h.Argon2Hasher.Hash(secret)
}

func (h *countingHasher) Verify(secret, encodedHash string) error {
	h.verifies.Add(1)
	return h.Argon2Hasher.Verify(secret, encodedHash)
}

func (h *countingHasher) reset() {
	h.hashes.Store(0)
	h.verifies.Store(0)
}

// recordingDispatcher keeps every dispatched code.
type recordingDispatcher struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{codes: map[string][]string{}}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, destination, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.codes[destination] = append(d.codes[destination], code)
	return nil
}

func (d *recordingDispatcher) count(destination string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.codes[destination])
}

func (d *recordingDispatcher) last(t *testing.T, destination string) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	codes := d.codes[destination]
	require.NotEmpty(t, codes, "no code dispatched to %s", destination)
	return codes[len(codes)-1]
}
