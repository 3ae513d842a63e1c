package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmkeys/internal/action"
	"wmkeys/internal/config"
	"wmkeys/internal/hotkeys"
	"wmkeys/internal/testutil"
	"wmkeys/internal/wsserver"
)

const (
	ksLowD   = 0x64
	ksReturn = 0xff0d
)

func testConfig(bindings ...config.BindingConfig) config.Config {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.Bindings = bindings
	return cfg
}

func TestBuildRegistry(t *testing.T) {
	cfg := testConfig(
		config.BindingConfig{Keys: "super + Return", Spawn: "xterm"},
		config.BindingConfig{Keys: "super + shift + r", Lua: `wmkeys.log("x")`},
	)
	reg, err := BuildRegistry(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())
	assert.Equal(t, hotkeys.DefaultGhostModifiers, reg.GhostModifiers())

	b := reg.Handle(hotkeys.ModSuper|hotkeys.ModNumLock, ksReturn)
	require.NotNil(t, b)
	assert.IsType(t, &action.Spawn{}, b.Action())
}

func TestBuildRegistryCollectsBindingErrors(t *testing.T) {
	cfg := testConfig(
		config.BindingConfig{Keys: "super + d", Spawn: "dmenu_run"},
		config.BindingConfig{Keys: "super + SomeNotExistingKey", Spawn: "x"},
		config.BindingConfig{Keys: "a + b", Spawn: "x"},
		config.BindingConfig{Keys: "super + d", Spawn: "again"},
		config.BindingConfig{Keys: "super + l", Lua: "if then"},
	)
	reg, err := BuildRegistry(cfg)
	require.NotNil(t, reg)
	require.Error(t, err)
	assert.Equal(t, 1, reg.Len(), "valid bindings are still registered")

	assert.ErrorIs(t, err, hotkeys.ErrUnknownKey)
	assert.ErrorIs(t, err, hotkeys.ErrInvalidModifier)
	assert.ErrorIs(t, err, hotkeys.ErrDuplicateBinding)

	var be *BindingError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Index)
	assert.Contains(t, err.Error(), "bindings[4]")
}

func TestBuildRegistryCustomDelimiterAndGhost(t *testing.T) {
	cfg := testConfig(config.BindingConfig{Keys: "ctrl / d", Spawn: "x"})
	cfg.Delimiter = "/"
	cfg.GhostModifiers = []string{}

	reg, err := BuildRegistry(cfg)
	require.NoError(t, err)
	assert.NotNil(t, reg.Handle(hotkeys.ModControl, ksLowD))
	assert.Nil(t, reg.Handle(hotkeys.ModControl|hotkeys.ModNumLock, ksLowD))
}

func TestBuildRegistryRejectsBadGhost(t *testing.T) {
	cfg := testConfig()
	cfg.GhostModifiers = []string{"fnlock"}
	reg, err := BuildRegistry(cfg)
	assert.Nil(t, reg)
	assert.Error(t, err)
}

func TestDescriptions(t *testing.T) {
	got := Descriptions(config.DefaultConfig())
	assert.Equal(t, "Open terminal", got["super + Return"])
}

func TestNewSkipsBrokenBindings(t *testing.T) {
	a, err := New(testConfig(
		config.BindingConfig{Keys: "super + d", Spawn: "x"},
		config.BindingConfig{Keys: "super + nope_nope", Spawn: "x"},
	))
	require.NoError(t, err)
	assert.Len(t, a.Manager().Bindings(), 1)
}

func TestNewSkipsEntriesWithoutAction(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", `listen: 127.0.0.1:0
bindings:
  - keys: super + x
  - keys: super + d
    spawn: dmenu_run
  - keys: super + y
    spawn: a
    lua: b()
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, buildErr := BuildRegistry(cfg)
	require.Error(t, buildErr)
	assert.Contains(t, buildErr.Error(), "bindings[0]")
	assert.Contains(t, buildErr.Error(), "bindings[2]")

	a, err := New(cfg)
	require.NoError(t, err)
	require.Len(t, a.Manager().Bindings(), 1)
	assert.Equal(t, "super + d", a.Manager().Bindings()[0].Origin())
}

func TestHandleKey(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, a.Manager().Add("super + d", action.Func(func() error { return nil })))

	tests := []struct {
		name        string
		ev          wsserver.KeyEvent
		wantMatched bool
		wantQueued  int
	}{
		{"match queues", wsserver.KeyEvent{ID: "1", Modifiers: uint16(hotkeys.ModSuper), Keysym: ksLowD}, true, 1},
		{"ghosted match", wsserver.KeyEvent{ID: "2", Modifiers: uint16(hotkeys.ModSuper | hotkeys.ModCapsLock), Keysym: ksLowD}, true, 1},
		{"dry run does not queue", wsserver.KeyEvent{ID: "3", Modifiers: uint16(hotkeys.ModSuper), Keysym: ksLowD, DryRun: true}, true, 0},
		{"miss", wsserver.KeyEvent{ID: "4", Modifiers: uint16(hotkeys.ModShift), Keysym: ksLowD}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(a.queue)
			res := a.HandleKey(context.Background(), tt.ev)
			assert.Equal(t, tt.wantMatched, res.Matched)
			if tt.wantMatched {
				assert.Equal(t, "super + d", res.Origin)
			}
			assert.Equal(t, tt.wantQueued, len(a.queue)-before)
		})
	}
}

func TestHandleKeyQueueFull(t *testing.T) {
	a, err := New(testConfig(), WithQueueSize(1))
	require.NoError(t, err)
	require.NoError(t, a.Manager().Add("d", action.Func(func() error { return nil })))

	ev := wsserver.KeyEvent{Keysym: ksLowD}
	assert.Empty(t, a.HandleKey(context.Background(), ev).Error)
	res := a.HandleKey(context.Background(), ev)
	assert.True(t, res.Matched)
	assert.Equal(t, ErrQueueFull.Error(), res.Error)
}

func TestDispatchOverWebSocket(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, a.Manager().Add("super + d", action.Func(func() error {
		runs.Add(1)
		return nil
	})))
	require.NoError(t, a.Manager().Add("super + p", action.Func(func() error { panic("bad action") })))

	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(a.Stop)

	conn, _, err := websocket.DefaultDialer.Dial(a.URL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello wsserver.HelloMessage
	require.NoError(t, conn.ReadJSON(&hello))

	// A panicking action must not stop later dispatches.
	require.NoError(t, conn.WriteJSON(wsserver.KeyEvent{Type: wsserver.TypeKey, ID: "p", Modifiers: uint16(hotkeys.ModSuper), Keysym: 0x70}))
	var first wsserver.MatchResult
	require.NoError(t, conn.ReadJSON(&first))
	assert.True(t, first.Matched)

	require.NoError(t, conn.WriteJSON(wsserver.KeyEvent{Type: wsserver.TypeKey, ID: "d", Modifiers: uint16(hotkeys.ModSuper), Keysym: ksLowD}))
	var res wsserver.MatchResult
	require.NoError(t, conn.ReadJSON(&res))
	assert.Equal(t, "d", res.ID)
	assert.Equal(t, "super + d", res.Origin)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunReturnsWhenContextDone(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.hub.HasActiveConnection())
}

func TestStartFailsOnBusyAddress(t *testing.T) {
	first, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(first.Stop)

	cfg := testConfig()
	cfg.Listen = first.URL()[len("ws://") : len(first.URL())-len("/ws")]
	second, err := New(cfg)
	require.NoError(t, err)

	err = second.Start(context.Background())
	require.Error(t, err)
	second.Stop()
}

func TestLogHandlerForwardsWarnings(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(a.Stop)

	conn, _, err := websocket.DefaultDialer.Dial(a.URL(), nil)
	require.NoError(t, err)
	defer conn.Close()
	var hello wsserver.HelloMessage
	require.NoError(t, conn.ReadJSON(&hello))

	logger := slog.New(a.LogHandler(slog.DiscardHandler))
	logger.Info("quiet")
	logger.Warn("loud", "origin", "super + d")

	var msg wsserver.LogMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsserver.TypeLog, msg.Type)
	assert.Equal(t, "WARN", msg.Level)
	assert.Equal(t, "loud", msg.Message)
	assert.Equal(t, "super + d", msg.Attrs["origin"])
}

func TestBindingErrorUnwrap(t *testing.T) {
	be := &BindingError{Index: 2, Keys: "x", Err: hotkeys.ErrMissingKey}
	assert.True(t, errors.Is(be, hotkeys.ErrMissingKey))
	assert.Equal(t, `bindings[2] "x": no key provided`, be.Error())
}
