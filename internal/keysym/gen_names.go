//go:build ignore

// gen_names builds names.go from the X11 keysym headers.
//
//	go run gen_names.go -o names.go /usr/include/X11/keysymdef.h /usr/include/X11/XF86keysym.h
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"log"
	"os"
	"regexp"
	"strconv"
)

// evdevBase is the offset applied by the _EVDEVK macro in XF86keysym.h.
const evdevBase = 0x10081000

var defineRE = regexp.MustCompile(`^#define\s+(XF86XK_|XK_)(\w+)\s+(?:(0x[0-9a-fA-F]+)|_EVDEVK\((0x[0-9a-fA-F]+)\))`)

type entry struct {
	name string
	code uint64
}

func main() {
	out := flag.String("o", "names.go", "output file")
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatal("usage: gen_names -o names.go keysymdef.h [XF86keysym.h ...]")
	}

	var entries []entry
	seen := make(map[string]bool)
	for _, path := range flag.Args() {
		parsed, err := parseHeader(path)
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range parsed {
			if seen[e.name] || e.code == 0 {
				continue
			}
			seen[e.name] = true
			entries = append(entries, e)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by gen_names.go from keysymdef.h and XF86keysym.h; DO NOT EDIT.\n\n")
	buf.WriteString("package keysym\n\nimport \"github.com/BurntSushi/xgb/xproto\"\n\n")
	buf.WriteString("// names lists X11 keysym names (without the XK_ prefix) in header order.\n")
	buf.WriteString("// Aliases follow the name they alias.\n")
	buf.WriteString("var names = []struct {\n\tname string\n\tcode xproto.Keysym\n}{\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "\t{%q, 0x%04x},\n", e.name, e.code)
	}
	buf.WriteString("}\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		log.Fatalf("format: %v", err)
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d keysyms to %s", len(entries), *out)
}

func parseHeader(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := defineRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := m[2]
		if m[1] == "XF86XK_" {
			name = "XF86" + name
		}
		var code uint64
		if m[3] != "" {
			code, err = strconv.ParseUint(m[3], 0, 32)
		} else {
			code, err = strconv.ParseUint(m[4], 0, 32)
			code += evdevBase
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", path, sc.Text(), err)
		}
		entries = append(entries, entry{name: name, code: code})
	}
	return entries, sc.Err()
}
