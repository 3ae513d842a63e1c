package wsserver

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeKeyEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    KeyEvent
		wantErr string
	}{
		{
			name: "full event",
			raw:  `{"type":"key","id":"a1","modifiers":68,"keysym":65293,"dry_run":true}`,
			want: KeyEvent{Type: TypeKey, ID: "a1", Modifiers: 68, Keysym: 65293, DryRun: true},
		},
		{
			name: "unknown fields ignored",
			raw:  `{"type":"key","keysym":100,"extra":1}`,
			want: KeyEvent{Type: TypeKey, Keysym: 100},
		},
		{name: "malformed", raw: `{"type":`, wantErr: "invalid JSON"},
		{name: "wrong type", raw: `{"type":"match","keysym":1}`, wantErr: "unsupported message type"},
		{name: "missing type", raw: `{"keysym":1}`, wantErr: "unsupported message type"},
		{name: "zero keysym", raw: `{"type":"key"}`, wantErr: "keysym is required"},
		{name: "modifier overflow", raw: `{"type":"key","keysym":1,"modifiers":70000}`, wantErr: "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeKeyEvent([]byte(tt.raw))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("DecodeKeyEvent() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeKeyEvent() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("DecodeKeyEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMatchResultOmitsEmptyOrigin(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(MatchResult{Type: TypeMatch, ID: "1", Keysym: 100})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(raw)
	if strings.Contains(got, "origin") || strings.Contains(got, "error") {
		t.Fatalf("unmatched result = %s", got)
	}
	if !strings.Contains(got, `"matched":false`) {
		t.Fatalf("matched flag missing: %s", got)
	}
}
