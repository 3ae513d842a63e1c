package action

import (
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmkeys/internal/config"
	"wmkeys/internal/hotkeys"
	"wmkeys/internal/testutil"
)

// recordStart captures started commands instead of running them.
type recordStart struct {
	cmds []*exec.Cmd
	err  error
}

func (r *recordStart) start(cmd *exec.Cmd) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.cmds = append(r.cmds, cmd)
	return 4242, nil
}

func TestFunc(t *testing.T) {
	called := false
	var act hotkeys.Action = Func(func() error {
		called = true
		return nil
	})
	require.NoError(t, act.Run())
	assert.True(t, called)
}

func TestSpawnBuildsShellCommand(t *testing.T) {
	rec := &recordStart{}
	s := &Spawn{Command: "cd /tmp && FOO=bar echo hi", Start: rec.start}

	require.NoError(t, s.Run())
	require.Len(t, rec.cmds, 1)

	cmd := rec.cmds[0]
	assert.Equal(t, "/tmp", cmd.Dir)
	if runtime.GOOS == "windows" {
		assert.Equal(t, []string{"cmd.exe", "/C", "echo hi"}, cmd.Args)
	} else {
		assert.Equal(t, []string{"/bin/sh", "-c", "echo hi"}, cmd.Args)
	}
	assert.True(t, slices.Contains(cmd.Env, "FOO=bar"), "extra env missing from %v", cmd.Env)
}

func TestSpawnWithoutEnvInheritsEnvironment(t *testing.T) {
	rec := &recordStart{}
	require.NoError(t, (&Spawn{Command: "xterm", Start: rec.start}).Run())
	assert.Nil(t, rec.cmds[0].Env)
	assert.Empty(t, rec.cmds[0].Dir)
}

func TestSpawnEmptyCommand(t *testing.T) {
	rec := &recordStart{}
	err := (&Spawn{Command: "   ", Start: rec.start}).Run()
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.Empty(t, rec.cmds)
}

func TestSpawnStartError(t *testing.T) {
	startErr := errors.New("exec format error")
	err := (&Spawn{Command: "xterm", Start: (&recordStart{err: startErr}).start}).Run()
	assert.ErrorIs(t, err, startErr)
	assert.Contains(t, err.Error(), `"xterm"`)
}

func TestSpawnRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	require.NoError(t, NewSpawn("exit 0").Run())
}

func TestNewLuaRejectsSyntaxError(t *testing.T) {
	_, err := NewLua("broken", "wmkeys.log(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLuaLog(t *testing.T) {
	buf := testutil.CaptureLogBuffer(t, slog.LevelInfo)

	act, err := NewLua("super + r", `wmkeys.log("reload " .. string.upper("now"))`)
	require.NoError(t, err)
	require.NoError(t, act.Run())

	assert.Contains(t, buf.String(), "reload NOW")
	assert.Contains(t, buf.String(), "super + r")
}

func TestLuaSpawn(t *testing.T) {
	rec := &recordStart{}
	act, err := NewLua("spawner", `
local pid = wmkeys.spawn("xterm -e top")
assert(pid == 4242, "unexpected pid")
`)
	require.NoError(t, err)
	act.Start = rec.start

	require.NoError(t, act.Run())
	require.Len(t, rec.cmds, 1)
	assert.Equal(t, "xterm -e top", rec.cmds[0].Args[len(rec.cmds[0].Args)-1])
}

func TestLuaSpawnErrorIsRaised(t *testing.T) {
	act, err := NewLua("empty spawn", `wmkeys.spawn("")`)
	require.NoError(t, err)
	act.Start = (&recordStart{}).start

	err = act.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty spawn command")
}

func TestLuaRuntimeError(t *testing.T) {
	act, err := NewLua("fails", `error("nope")`)
	require.NoError(t, err)
	err = act.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestLuaSandboxHidesOS(t *testing.T) {
	act, err := NewLua("escape", `os.execute("true")`)
	require.NoError(t, err)
	require.Error(t, act.Run())
}

func TestLuaFreshStatePerRun(t *testing.T) {
	act, err := NewLua("counter", `
if seen then error("state leaked between runs") end
seen = true
`)
	require.NoError(t, err)
	require.NoError(t, act.Run())
	require.NoError(t, act.Run())
}

func TestLuaTimeout(t *testing.T) {
	act, err := NewLua("spin", `while true do end`)
	require.NoError(t, err)
	act.Timeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- act.Run() }()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lua script was not interrupted")
	}
}

func TestFromConfig(t *testing.T) {
	spawn, err := FromConfig(config.BindingConfig{Keys: "super + Return", Spawn: "xterm"})
	require.NoError(t, err)
	assert.IsType(t, &Spawn{}, spawn)

	script, err := FromConfig(config.BindingConfig{Keys: "super + r", Lua: `wmkeys.log("x")`})
	require.NoError(t, err)
	require.IsType(t, &Lua{}, script)
	assert.Equal(t, "super + r", script.(*Lua).Name)

	_, err = FromConfig(config.BindingConfig{Keys: "super + x"})
	assert.Error(t, err)

	_, err = FromConfig(config.BindingConfig{Keys: "super + y", Lua: "if then"})
	assert.Error(t, err)
}
