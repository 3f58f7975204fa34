// Package compileinfo loads the compile-commands JSON input described in
// spec.md §6: a map from absolute device-file path to its include search
// path and dmlc flags.
package compileinfo

import "encoding/json"

// Entry is one device file's compile information. Unknown JSON keys are
// ignored, per spec.md §6.
type Entry struct {
	Includes  []string `json:"includes"`
	DMLCFlags []string `json:"dmlc_flags"`
}

// Table maps an absolute device-file path to its Entry.
type Table map[string]Entry

// Parse decodes a compile-commands JSON document. A malformed document
// returns the json error unchanged: a read failure here is a Go error
// rather than a diagnostic, since the compile-commands file is a CLI/LSP
// startup input, not a DML source file (spec.md §6's core-diagnostic
// boundary).
func Parse(data []byte) (Table, error) {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	t := make(Table, len(raw))
	for path, entry := range raw {
		t[path] = entry
	}
	return t, nil
}

// IncludesFor returns the configured include path for file, or nil if the
// table has no entry for it.
func (t Table) IncludesFor(file string) []string {
	e, ok := t[file]
	if !ok {
		return nil
	}
	return e.Includes
}
