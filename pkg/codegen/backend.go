package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an IR program and a configuration, and produces the target
	// assembly as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

func SelectBackend(name string) (Backend, error) {
	switch name {
	case "nasm":
		return NewNASMBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend '%s'. Supported: nasm, qbe", name)
	}
}
