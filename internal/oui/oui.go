// Package oui maps hardware addresses to manufacturer names using the
// organizationally unique identifier (first three octets) of the address.
package oui

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Unknown is returned for addresses with no matching prefix.
const Unknown = "Unknown"

//go:embed oui_data.txt
var builtinData []byte

// Table is a prefix -> vendor lookup table. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewTable creates a table from a prefix -> vendor map. Prefixes may use any
// common separator and case.
func NewTable(entries map[string]string) *Table {
	t := &Table{entries: make(map[string]string, len(entries))}
	for prefix, vendor := range entries {
		t.Add(prefix, vendor)
	}
	return t
}

// Parse reads "PREFIX<TAB>Vendor" lines. Blank lines and lines starting
// with # are skipped.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{entries: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("oui line %d: expected prefix and vendor separated by a tab", line)
		}
		if !t.Add(parts[0], parts[1]) {
			return nil, fmt.Errorf("oui line %d: invalid prefix %q", line, parts[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read oui data: %w", err)
	}
	return t, nil
}

// LoadFile parses an OUI file and merges it over the built-in table.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open oui file: %w", err)
	}
	defer func() { _ = f.Close() }()

	extra, err := Parse(f)
	if err != nil {
		return nil, err
	}

	t := Default().Clone()
	extra.mu.RLock()
	defer extra.mu.RUnlock()
	for prefix, vendor := range extra.entries {
		t.entries[prefix] = vendor
	}
	return t, nil
}

// Add registers a prefix. It returns false when the prefix is not three
// hex octets or the vendor is empty.
func (t *Table) Add(prefix, vendor string) bool {
	p := Prefix(prefix)
	vendor = strings.TrimSpace(vendor)
	if p == "" || vendor == "" {
		return false
	}
	t.mu.Lock()
	t.entries[p] = vendor
	t.mu.Unlock()
	return true
}

// Lookup returns the vendor for a hardware address, or Unknown.
func (t *Table) Lookup(mac string) string {
	p := Prefix(mac)
	if p == "" {
		return Unknown
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if vendor, ok := t.entries[p]; ok {
		return vendor
	}
	return Unknown
}

// Len returns the number of known prefixes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Table{entries: make(map[string]string, len(t.entries))}
	for k, v := range t.entries {
		c.entries[k] = v
	}
	return c
}

// Prefix normalizes the first three octets of a hardware address to
// uppercase colon-separated form ("AA:BB:CC"). Colon or dash separated
// octets may omit their leading zero ("0:1f:3b"), dotted groups
// ("001d.0f12.3456") may omit theirs too. It returns "" when the input
// does not carry three hex octets.
func Prefix(mac string) string {
	raw := strings.ToUpper(strings.TrimSpace(mac))

	var digits string
	switch {
	case strings.ContainsAny(raw, ":-"):
		octets := strings.Split(strings.ReplaceAll(raw, "-", ":"), ":")
		if len(octets) < 3 {
			return ""
		}
		for _, o := range octets[:3] {
			if len(o) == 0 || len(o) > 2 {
				return ""
			}
			digits += strings.Repeat("0", 2-len(o)) + o
		}
	case strings.Contains(raw, "."):
		for _, g := range strings.Split(raw, ".") {
			if len(g) == 0 || len(g) > 4 {
				return ""
			}
			digits += strings.Repeat("0", 4-len(g)) + g
		}
	default:
		digits = raw
	}

	if len(digits) < 6 {
		return ""
	}
	for _, c := range digits[:6] {
		if !isHex(c) {
			return ""
		}
	}
	return digits[0:2] + ":" + digits[2:4] + ":" + digits[4:6]
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the built-in table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(bytes.NewReader(builtinData))
		if err != nil {
			panic(fmt.Sprintf("oui: built-in table is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Lookup returns the vendor for a hardware address using the built-in table.
func Lookup(mac string) string {
	return Default().Lookup(mac)
}
