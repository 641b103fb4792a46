// Package toolchain drives the Nim compiler and Nimble package manager as
// subprocesses, following the same os/exec invocation idiom the upstream
// support package uses for its git subprocess wrappers: one small helper
// that sets cmd.Dir and captures output. Check, GenDepend, FindDefinition,
// ExpandMacro and DocProjectIndex convert spawn/exit failures into a
// structured result; ExtractJSONDoc and DumpConfig return a spawn failure
// as a Go error.
package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SourceExtension is the file extension recognized as a Nim source file.
const SourceExtension = ".nim"

// ManifestExtension is the Nimble package manifest extension.
const ManifestExtension = ".nimble"

// Result is the structured outcome of a toolchain invocation; operations
// returning it report spawn failures, including context cancellation, as
// Status "error" with ExitCode -1.
type Result struct {
	Status   string `json:"status"` // "success" or "error"
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// Driver runs the Nim toolchain bound to a single project root.
type Driver struct {
	root           string
	compilerBinary string
	packagerBinary string
}

// New constructs a Driver bound to projectRoot, using the given compiler
// and packager binary names (normally "nim" and "nimble").
func New(projectRoot, compilerBinary, packagerBinary string) *Driver {
	if compilerBinary == "" {
		compilerBinary = "nim"
	}
	if packagerBinary == "" {
		packagerBinary = "nimble"
	}
	return &Driver{root: projectRoot, compilerBinary: compilerBinary, packagerBinary: packagerBinary}
}

// Root returns the project root this driver is bound to.
func (d *Driver) Root() string { return d.root }

func (d *Driver) run(ctx context.Context, dir string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, d.compilerBinary, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return buf.String(), -1, err
		}
	}
	return buf.String(), exitCode, nil
}

// Check runs the compiler's semantic check with hints silenced.
// status == "success" iff the subprocess exits with code zero.
func (d *Driver) Check(ctx context.Context, path string) Result {
	out, code, err := d.run(ctx, d.root, "check", "--hints:off", path)
	if err != nil {
		return Result{Status: "error", Output: err.Error(), ExitCode: -1}
	}
	status := "error"
	if code == 0 {
		status = "success"
	}
	return Result{Status: status, Output: out, ExitCode: code}
}

// ExtractJSONDoc runs the compiler's jsondoc mode against path and returns
// the raw stdout plus exit code; the caller parses the JSON separately.
func (d *Driver) ExtractJSONDoc(ctx context.Context, path string) (string, int, error) {
	out, code, err := d.run(ctx, d.root, "jsondoc", "--stdout:on", "--hints:off", "--warnings:off", path)
	if err != nil {
		return "", -1, err
	}
	return out, code, nil
}

// DependResult is the outcome of GenDepend.
type DependResult struct {
	Status       string `json:"status"`
	Dependencies string `json:"dependencies,omitempty"`
	Message      string `json:"message,omitempty"`
}

// GenDepend runs the compiler's dependency-graph generator against the
// project's main file and returns the contents of the produced .dot file.
func (d *Driver) GenDepend(ctx context.Context) DependResult {
	main, ok := d.FindMainFile()
	if !ok {
		return DependResult{Status: "error", Message: "could not locate a main file"}
	}

	args := []string{"genDepend"}
	srcDir := filepath.Join(d.root, "src")
	if info, err := os.Stat(srcDir); err == nil && info.IsDir() {
		args = append(args, "--path:"+srcDir)
	}
	args = append(args, main)

	_, code, err := d.run(ctx, d.root, args...)
	if err != nil {
		return DependResult{Status: "error", Message: err.Error()}
	}
	if code != 0 {
		return DependResult{Status: "error", Message: fmt.Sprintf("genDepend exited with code %d", code)}
	}

	dotPath := strings.TrimSuffix(main, filepath.Ext(main)) + ".dot"
	data, err := os.ReadFile(dotPath)
	if err != nil {
		return DependResult{Status: "error", Message: fmt.Sprintf("genDepend succeeded but %s is missing", dotPath)}
	}
	return DependResult{Status: "success", Dependencies: string(data)}
}

// FindDefinition runs check with --defusages and scans output for def:/usage:
// marker lines.
func (d *Driver) FindDefinition(ctx context.Context, file string, line, col int) Result {
	arg := fmt.Sprintf("--defusages:%s,%d,%d", file, line, col)
	out, code, err := d.run(ctx, d.root, "check", arg, file)
	if err != nil {
		return Result{Status: "error", Output: err.Error(), ExitCode: -1}
	}
	var matched []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "def:") || strings.Contains(line, "usage:") {
			matched = append(matched, line)
		}
	}
	status := "error"
	if code == 0 {
		status = "success"
	}
	return Result{Status: status, Output: strings.Join(matched, "\n"), ExitCode: code}
}

// ExpandMacro compiles with --expandMacro:<name> and returns captured output.
func (d *Driver) ExpandMacro(ctx context.Context, name, file string) Result {
	out, code, err := d.run(ctx, d.root, "c", "--expandMacro:"+name, file)
	if err != nil {
		return Result{Status: "error", Output: err.Error(), ExitCode: -1}
	}
	status := "error"
	if code == 0 {
		status = "success"
	}
	return Result{Status: status, Output: out, ExitCode: code}
}

// DumpConfig runs dump in JSON mode and returns parsed JSON when possible,
// falling back to the raw text.
func (d *Driver) DumpConfig(ctx context.Context) (map[string]interface{}, string, error) {
	out, _, err := d.run(ctx, d.root, "dump", "--dump.format:json")
	if err != nil {
		return nil, "", err
	}
	var parsed map[string]interface{}
	if json.Unmarshal([]byte(out), &parsed) == nil {
		return parsed, "", nil
	}
	return nil, out, nil
}

// DocProjectIndex runs a project-wide documentation pass with index-file
// generation enabled, producing one .idx file per compiled module next to
// its source.
func (d *Driver) DocProjectIndex(ctx context.Context, mainFile string) Result {
	out, code, err := d.run(ctx, d.root, "doc", "--index:on", "--hints:off", "--warnings:off", "--project", mainFile)
	if err != nil {
		return Result{Status: "error", Output: err.Error(), ExitCode: -1}
	}
	status := "error"
	if code == 0 {
		status = "success"
	}
	return Result{Status: status, Output: out, ExitCode: code}
}

// FindMainFile applies the §4.1 main-file detection heuristic.
func (d *Driver) FindMainFile() (string, bool) {
	if bin, ok := d.manifestBinName(); ok {
		candidate := filepath.Join(d.root, bin+SourceExtension)
		if fileExists(candidate) {
			return candidate, true
		}
	}

	base := filepath.Base(d.root)
	rootCandidates := []string{"main", "app", base}
	for _, c := range rootCandidates {
		p := filepath.Join(d.root, c+SourceExtension)
		if fileExists(p) {
			return p, true
		}
	}

	srcDir := filepath.Join(d.root, "src")
	for _, c := range rootCandidates {
		p := filepath.Join(srcDir, c+SourceExtension)
		if fileExists(p) {
			return p, true
		}
	}

	if f, ok := firstSourceFile(d.root); ok {
		return f, true
	}
	if f, ok := firstSourceFile(srcDir); ok {
		return f, true
	}
	return "", false
}

// manifestBinName scans a .nimble manifest in the project root for a `bin`
// assignment. It first tries a BurntSushi/toml parse (many .nimble files
// are valid-enough TOML for key = value lines); on failure it falls back to
// a line scan, per the spec's documented reference behavior.
func (d *Driver) manifestBinName() (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(d.root, "*"+ManifestExtension))
	if len(matches) == 0 {
		return "", false
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", false
	}

	if name, ok := binNameFromTOML(data); ok {
		return name, true
	}
	return binNameFromLineScan(data)
}

func binNameFromLineScan(data []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "bin") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 || strings.TrimSpace(line[:idx]) != "bin" {
			continue
		}
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `@[]"`)
		parts := strings.Split(value, ",")
		if len(parts) == 0 {
			continue
		}
		name := strings.Trim(strings.TrimSpace(parts[0]), `"`)
		if name != "" {
			return name, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstSourceFile(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), SourceExtension) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}
