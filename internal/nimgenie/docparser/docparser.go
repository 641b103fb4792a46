// Package docparser turns the Nim toolchain's textual outputs (jsondoc JSON,
// tab-separated .idx index files, genDepend DOT graphs) into normalized
// SymbolRecord and dependency-edge values. Every parser here is pure: bytes
// in, records out, no I/O.
package docparser

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// SymbolRecord mirrors the SymbolRecord entity from the data model; the
// numeric id and embedding vectors are filled in by later pipeline stages.
type SymbolRecord struct {
	Name          string
	SymbolType    string
	Module        string
	FilePath      string
	Line          int
	Column        int
	Signature     string
	Documentation string
	Visibility    string
	Code          string
	Pragmas       string
}

// Edge is a directed source -> target dependency.
type Edge struct {
	Source string
	Target string
}

// indexSymbolWhitelist is the set of index-file entry types recognized as
// symbols, per the configuration point the spec calls out in §4.2.
var indexSymbolWhitelist = map[string]bool{
	"nimgrp": true,
	"nimsym": true,
}

// signatureValue is the tagged-union representation of the jsondoc
// "signature" field, which is either a plain string or a structured object
// with return/arguments/pragmas. It implements json.Unmarshaler to dispatch
// on the raw JSON shape at decode time.
type signatureValue struct {
	raw       string
	isObject  bool
	returnVal string
	arguments []argumentValue
	pragmas   []string
}

type argumentValue struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *signatureValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s.raw = str
		return nil
	}

	var obj struct {
		Return    string          `json:"return"`
		Arguments []argumentValue `json:"arguments"`
		Pragmas   []string        `json:"pragmas"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.isObject = true
	s.returnVal = obj.Return
	s.arguments = obj.Arguments
	s.pragmas = obj.Pragmas
	return nil
}

// reconstruct builds the canonical "return: R; args: (n: T, ...); pragmas:
// p, ..." string for a structured signature, omitting empty sections.
func (s *signatureValue) reconstruct() string {
	if !s.isObject {
		return s.raw
	}

	var parts []string
	if s.returnVal != "" {
		parts = append(parts, "return: "+s.returnVal)
	}
	if len(s.arguments) > 0 {
		var args []string
		for _, a := range s.arguments {
			args = append(args, a.Name+": "+a.Type)
		}
		parts = append(parts, "args: ("+strings.Join(args, ", ")+")")
	}
	if len(s.pragmas) > 0 {
		parts = append(parts, "pragmas: "+strings.Join(s.pragmas, ", "))
	}
	return strings.Join(parts, "; ")
}

func (s *signatureValue) pragmasJSON() string {
	if !s.isObject || len(s.pragmas) == 0 {
		return ""
	}
	data, err := json.Marshal(s.pragmas)
	if err != nil {
		return ""
	}
	return string(data)
}

type jsonDocEntry struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Line        int             `json:"line"`
	Col         int             `json:"col"`
	Description string          `json:"description"`
	Code        string          `json:"code"`
	File        string          `json:"file"`
	Signature   *signatureValue `json:"signature"`
}

type jsonDocRoot struct {
	Orig    string         `json:"orig"`
	File    string         `json:"file"`
	Entries []jsonDocEntry `json:"entries"`
}

// ParseJSONDoc parses a jsondoc stdout blob into SymbolRecords. projectRoot
// is used to resolve relative file paths to absolute ones. ext is the
// source file extension (".nim") used when no file path is available at
// all.
func ParseJSONDoc(data []byte, projectRoot, ext string) []SymbolRecord {
	// Cheap shape probe before committing to a full typed decode, mirroring
	// the "gjson first, encoding/json second" idiom used for FTS result rows.
	if !gjson.GetBytes(data, "entries").IsArray() {
		return nil
	}

	var root jsonDocRoot
	if err := json.Unmarshal(data, &root); err != nil {
		return nil
	}

	module := moduleNameFromOrig(root.Orig)

	records := make([]SymbolRecord, 0, len(root.Entries))
	for _, e := range root.Entries {
		if e.Name == "" || e.Type == "" {
			continue
		}

		signature := ""
		pragmas := ""
		if e.Signature != nil {
			signature = e.Signature.reconstruct()
			pragmas = e.Signature.pragmasJSON()
		}

		filePath := e.File
		if filePath == "" {
			filePath = root.File
		}
		if filePath == "" {
			filePath = module + ext
		}
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(projectRoot, filePath)
		}

		records = append(records, SymbolRecord{
			Name:          e.Name,
			SymbolType:    e.Type,
			Module:        module,
			FilePath:      filePath,
			Line:          e.Line,
			Column:        e.Col,
			Signature:     signature,
			Documentation: e.Description,
			Visibility:    "public",
			Code:          e.Code,
			Pragmas:       pragmas,
		})
	}
	return records
}

func moduleNameFromOrig(orig string) string {
	if orig == "" {
		return "unknown"
	}
	base := filepath.Base(orig)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseIndexFile parses a tab-separated .idx file into SymbolRecords.
// Lines must have exactly six fields; lines whose entryType is not in the
// symbol whitelist, or that are empty, are skipped.
func ParseIndexFile(data []byte, module string) []SymbolRecord {
	var records []SymbolRecord
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			continue
		}
		entryType := fields[0]
		if !indexSymbolWhitelist[entryType] {
			continue
		}
		lineNum, _ := strconv.Atoi(fields[3])
		col, _ := strconv.Atoi(fields[4])
		records = append(records, SymbolRecord{
			Name:          fields[1],
			SymbolType:    entryType,
			Module:        module,
			FilePath:      fields[2],
			Line:          lineNum,
			Column:        col,
			Documentation: fields[5],
		})
	}
	return records
}

// ParseDOT parses a genDepend DOT graph into directed edges. It skips the
// "digraph" header line and brace-only lines; every remaining line
// containing "->" is split once, with surrounding quotes and a trailing
// semicolon stripped from each side.
func ParseDOT(data []byte) []Edge {
	var edges []Edge
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line == "{" || line == "}" || strings.HasPrefix(line, "digraph") {
			continue
		}
		idx := strings.Index(line, "->")
		if idx < 0 {
			continue
		}
		src := cleanDOTNode(line[:idx])
		tgt := cleanDOTNode(line[idx+2:])
		if src == "" || tgt == "" {
			continue
		}
		edges = append(edges, Edge{Source: src, Target: tgt})
	}
	return edges
}

func cleanDOTNode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}
