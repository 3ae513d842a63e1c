package shell

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCommandCore(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantWorkDir string
		wantEnv     map[string]string
		wantCommand string
	}{
		{
			name:        "plain command",
			input:       "alacritty",
			wantEnv:     map[string]string{},
			wantCommand: "alacritty",
		},
		{
			name:    "empty",
			input:   "   ",
			wantEnv: map[string]string{},
		},
		{
			name:        "single-quoted cd",
			input:       "cd '/tmp/my dir' && make build",
			wantWorkDir: "/tmp/my dir",
			wantEnv:     map[string]string{},
			wantCommand: "make build",
		},
		{
			name:        "double-quoted cd",
			input:       `cd "/srv/app" && ./run.sh --fast`,
			wantWorkDir: "/srv/app",
			wantEnv:     map[string]string{},
			wantCommand: "./run.sh --fast",
		},
		{
			name:        "bare cd without spaces",
			input:       "cd /opt&&ls",
			wantWorkDir: "/opt",
			wantEnv:     map[string]string{},
			wantCommand: "ls",
		},
		{
			name:        "cd without chain is kept",
			input:       "cd /opt",
			wantEnv:     map[string]string{},
			wantCommand: "cd /opt",
		},
		{
			name:        "env prefix",
			input:       "GDK_SCALE=2 LANG=C firefox",
			wantEnv:     map[string]string{"GDK_SCALE": "2", "LANG": "C"},
			wantCommand: "firefox",
		},
		{
			name:        "env command prefix",
			input:       "env TERM=xterm htop",
			wantEnv:     map[string]string{"TERM": "xterm"},
			wantCommand: "htop",
		},
		{
			name:        "env used as command",
			input:       "env | sort",
			wantEnv:     map[string]string{},
			wantCommand: "env | sort",
		},
		{
			name:        "cd then env",
			input:       "cd '/work' && DEBUG=1 'bin/tool' --flag",
			wantWorkDir: "/work",
			wantEnv:     map[string]string{"DEBUG": "1"},
			wantCommand: "'bin/tool' --flag",
		},
		{
			name:        "invalid env name stops extraction",
			input:       "1X=2 echo hi",
			wantEnv:     map[string]string{},
			wantCommand: "1X=2 echo hi",
		},
		{
			name:        "flag is not an assignment",
			input:       "--opt=1 run",
			wantEnv:     map[string]string{},
			wantCommand: "--opt=1 run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommandCore(tt.input)
			if got.WorkDir != tt.wantWorkDir {
				t.Errorf("WorkDir = %q, want %q", got.WorkDir, tt.wantWorkDir)
			}
			if !reflect.DeepEqual(got.ExtraEnv, tt.wantEnv) {
				t.Errorf("ExtraEnv = %v, want %v", got.ExtraEnv, tt.wantEnv)
			}
			if got.Command != tt.wantCommand {
				t.Errorf("Command = %q, want %q", got.Command, tt.wantCommand)
			}
		})
	}
}

func TestParseCommandExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got := ParseCommand("cd ~/src && make")
	if want := filepath.Join(home, "src"); got.WorkDir != want {
		t.Fatalf("WorkDir = %q, want %q", got.WorkDir, want)
	}
}

func TestParsedCommandEnviron(t *testing.T) {
	p := ParsedCommand{ExtraEnv: map[string]string{"B": "2", "A": "1"}}
	want := []string{"A=1", "B=2"}
	if got := p.Environ(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Environ() = %v, want %v", got, want)
	}
	if got := (ParsedCommand{}).Environ(); len(got) != 0 {
		t.Fatalf("Environ() on empty = %v", got)
	}
}

func TestArgvFor(t *testing.T) {
	tests := []struct {
		goos string
		want []string
	}{
		{"linux", []string{"/bin/sh", "-c", "echo hi"}},
		{"darwin", []string{"/bin/sh", "-c", "echo hi"}},
		{"windows", []string{"cmd.exe", "/C", "echo hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			if got := argvFor(tt.goos, "echo hi"); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("argvFor(%q) = %v, want %v", tt.goos, got, tt.want)
			}
		})
	}
}

func TestIsEnvVarName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"PATH", true},
		{"_x1", true},
		{"a", true},
		{"", false},
		{"1A", false},
		{"A-B", false},
	}
	for _, tt := range tests {
		if got := isEnvVarName(tt.in); got != tt.want {
			t.Errorf("isEnvVarName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
