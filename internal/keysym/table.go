// Package keysym resolves X11 keysym names such as "Return", "d" or
// "XF86AudioMute" to their numeric codes.
package keysym

//go:generate go run gen_names.go -o names.go /usr/include/X11/keysymdef.h /usr/include/X11/XF86keysym.h

import (
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
)

// NoSymbol is the X11 "no key" keysym. Lookups never return it.
const NoSymbol xproto.Keysym = 0

const namePrefix = "XK_"

// Table indexes keysym names for strict and relaxed lookup.
// A Table is immutable after construction and safe for concurrent use.
type Table struct {
	strict  map[string]xproto.Keysym
	relaxed map[string]xproto.Keysym
	byCode  map[xproto.Keysym]string
}

// Entry is a name/code pair used to build a Table.
type Entry struct {
	Name string
	Code xproto.Keysym
}

// NewTable builds a table from entries. For relaxed lookups and reverse
// names the first entry wins. Entries with code NoSymbol or an empty name
// are skipped.
func NewTable(entries []Entry) *Table {
	t := &Table{
		strict:  make(map[string]xproto.Keysym, len(entries)),
		relaxed: make(map[string]xproto.Keysym, len(entries)),
		byCode:  make(map[xproto.Keysym]string, len(entries)),
	}
	for _, e := range entries {
		if e.Code == NoSymbol || e.Name == "" {
			continue
		}
		if _, exists := t.strict[e.Name]; !exists {
			t.strict[e.Name] = e.Code
		}
		cleared := clearName(e.Name)
		if _, exists := t.relaxed[cleared]; !exists {
			t.relaxed[cleared] = e.Code
		}
		if _, exists := t.byCode[e.Code]; !exists {
			t.byCode[e.Code] = e.Name
		}
	}
	return t
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the built-in X11 table.
func Default() *Table {
	defaultOnce.Do(func() {
		entries := make([]Entry, 0, len(names))
		for _, n := range names {
			entries = append(entries, Entry{Name: n.name, Code: n.code})
		}
		defaultTable = NewTable(entries)
	})
	return defaultTable
}

// LookupStrict matches name exactly. A leading "XK_" is accepted.
func (t *Table) LookupStrict(name string) (xproto.Keysym, bool) {
	name = strings.TrimPrefix(name, namePrefix)
	code, ok := t.strict[name]
	return code, ok
}

// LookupRelaxed matches name ignoring case and a leading "XK_".
func (t *Table) LookupRelaxed(name string) (xproto.Keysym, bool) {
	code, ok := t.relaxed[clearName(name)]
	return code, ok
}

// Name returns the canonical name for code, or "" if the code is unknown.
func (t *Table) Name(code xproto.Keysym) string {
	return t.byCode[code]
}

// Len returns the number of distinct names in the table.
func (t *Table) Len() int {
	return len(t.strict)
}

func clearName(name string) string {
	lower := strings.ToLower(name)
	return strings.TrimPrefix(lower, strings.ToLower(namePrefix))
}
