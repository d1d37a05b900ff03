package credential

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/store"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newManager(t *testing.T) (*Manager, *eventloop.Loop) {
	t.Helper()
	loop := eventloop.NewManual(time.Unix(0, 0))
	return NewManager(loop, zap.NewNop()), loop
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "imcore.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestManagerWithoutProvider(t *testing.T) {
	m, loop := newManager(t)
	var readErr, writeErr error
	m.ReadPassword(context.Background(), "a", func(_ string, err error) { readErr = err })
	m.WritePassword(context.Background(), "a", "pw", func(err error) { writeErr = err })
	loop.Flush()
	assert.True(t, eris.Is(readErr, ErrNoProvider))
	assert.True(t, eris.Is(writeErr, ErrNoProvider))
}

func TestManagerRoundTrip(t *testing.T) {
	m, loop := newManager(t)
	mem := NewMemory()
	require.NoError(t, m.Register(mem))
	require.True(t, eris.Is(m.Register(mem), ErrDuplicate))

	var got string
	var readErr error
	m.ReadPassword(context.Background(), "a", func(pw string, err error) { got, readErr = pw, err })
	loop.Flush()
	assert.True(t, eris.Is(readErr, ErrNotFound), "read before write: %v", readErr)

	var writeErr error
	wrote := false
	m.WritePassword(context.Background(), "a", "secret", func(err error) { wrote, writeErr = true, err })
	loop.Flush()
	require.True(t, wrote)
	require.NoError(t, writeErr)
	assert.Equal(t, 1, mem.Writes())

	m.ReadPassword(context.Background(), "a", func(pw string, err error) { got, readErr = pw, err })
	loop.Flush()
	require.NoError(t, readErr)
	assert.Equal(t, "secret", got)

	m.ClearPassword(context.Background(), "a", nil)
	loop.Flush()
	m.ReadPassword(context.Background(), "a", func(pw string, err error) { got, readErr = pw, err })
	loop.Flush()
	assert.True(t, eris.Is(readErr, ErrNotFound))
}

func TestSetActive(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.Register(NewMemory()))
	require.NoError(t, m.Register(NewSQLite(testDB(t))))
	assert.Equal(t, "memory", m.Active().ID())
	require.NoError(t, m.SetActive("sqlite"))
	assert.Equal(t, "sqlite", m.Active().ID())
	assert.Error(t, m.SetActive("keyring"))
	assert.Equal(t, []string{"memory", "sqlite"}, m.Providers())

	require.NoError(t, m.Unregister("sqlite"))
	assert.Nil(t, m.Active())
}

func TestSQLiteProvider(t *testing.T) {
	p := NewSQLite(testDB(t))
	ctx := context.Background()

	_, err := p.Read(ctx, "a")
	assert.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, p.Write(ctx, "a", "hunter2"))
	pw, err := p.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	require.NoError(t, p.Clear(ctx, "a"))
	_, err = p.Read(ctx, "a")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestAgeProviderEncryptsAtRest(t *testing.T) {
	db := testDB(t)
	keyPath := filepath.Join(t.TempDir(), "keys", "credentials.age")
	p, err := NewAge(db, keyPath)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, "a", "hunter2"))
	raw, ok, err := db.GetCredential("a", "age")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "hunter2")

	// A second provider loading the same key file decrypts it.
	reopened, err := NewAge(db, keyPath)
	require.NoError(t, err)
	assert.Equal(t, p.Recipient(), reopened.Recipient())
	pw, err := reopened.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}
