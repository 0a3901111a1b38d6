package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/protoboard/protoboard/internal/compiler"
	"github.com/protoboard/protoboard/internal/model"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNotFound      = "E002" // Graph file not found
	ErrCodeNotCUE        = "E003" // Not a .cue file
	ErrCodeCompileFailed = "E004" // CUE compilation failed
	ErrCodeDBFailed      = "E005" // Trace database open failed
)

// LoadGraph reads and compiles a CUE graph file, without running the
// authoring rule set. It is the shared front half of run, validate, and
// scenario; validation strictness differs per command, so Validate is the
// caller's job.
//
// Path problems come back as ExitError (command error, exit 2); compile
// problems as compiler errors so validate can render positions.
func LoadGraph(path string) (*model.Graph, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: graph file not found", path))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: cannot access graph file", path), err)
	}
	if info.IsDir() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: is a directory, want a .cue file", path))
	}
	if filepath.Ext(path) != ".cue" {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: not a .cue file", path))
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: read failed", path), err)
	}

	return compiler.CompileGraphSource(string(src))
}

// LoadValidGraph compiles a graph and enforces the full authoring rule set,
// fail-fast on the first finding. run and scenario use it; validate runs
// collect-all itself.
func LoadValidGraph(path string) (*model.Graph, error) {
	g, err := LoadGraph(path)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(g); len(errs) > 0 {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("%s: invalid graph", path), errs[0])
	}
	return g, nil
}
