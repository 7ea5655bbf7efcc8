package properties

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modcore/internal/testutil"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "app.properties", "greeting=hello\n")
	p := New()
	require.NoError(t, p.LoadFile(path))

	logger := testutil.NewLogger(t)
	w, err := NewWatcher(p, logger)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	changes := make(chan []string, 4)
	w.OnChange(func(keys []string) { changes <- keys })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Close()
	assert.ErrorIs(t, w.Start(ctx), ErrWatcherStarted)

	write(t, dir, "app.properties", "greeting=bonjour\n")

	select {
	case keys := <-changes:
		assert.Contains(t, keys, "greeting")
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
	assert.Eventually(t, func() bool { return p.GetOr("greeting", "") == "bonjour" }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, logger.Contains("info", "properties reloaded"))
}

func TestWatcher_ManualReloadWithoutChanges(t *testing.T) {
	dir := t.TempDir()
	p := New()
	require.NoError(t, p.LoadFile(write(t, dir, "app.properties", "a=1\n")))

	w, err := NewWatcher(p, nil)
	require.NoError(t, err)
	defer w.Close()

	called := false
	w.OnChange(func([]string) { called = true })
	w.Reload()
	assert.False(t, called)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
