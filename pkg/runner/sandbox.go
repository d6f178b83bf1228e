package runner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// OutputMaxBytes bounds how much combined stdout+stderr a single
// invocation may produce.
const OutputMaxBytes = 1 << 20 // 1MB

// runSandboxed compiles and instantiates wasmBytes as a fresh WASI module,
// deny-by-default: no filesystem mount, no network, no ambient env vars,
// no random source. stdin carries request, stdout carries response.
// Each call gets its own wazero runtime so invocations never share
// mutable state.
func runSandboxed(ctx context.Context, wasmBytes []byte, input []byte) (stdout []byte, stderr []byte, err error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer func() { _ = r.Close(ctx) }()

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("runner: instantiate wasi: %w", err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("operator-invoke").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdoutBuf).
		WithStderr(&stderrBuf)
	// Deny-by-default: no WithFSConfig, no WithSysNanotime, no
	// WithRandSource, no WithEnv: the sandbox sees only stdin/stdout.

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("runner: compile module: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	mod, err := r.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("runner: execution timed out: %w", ctx.Err())
		}
		return nil, nil, fmt.Errorf("runner: instantiate module: %w", err)
	}
	defer func() { _ = mod.Close(ctx) }()

	if stdoutBuf.Len()+stderrBuf.Len() > OutputMaxBytes {
		return nil, nil, fmt.Errorf("runner: output exceeds %d bytes", OutputMaxBytes)
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), nil
}
