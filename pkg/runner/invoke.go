package runner

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/greentic/packoperator/pkg/envelope"
	"github.com/greentic/packoperator/pkg/packindex"
)

// InvokeRequest names one provider op invocation.
type InvokeRequest struct {
	Domain               string
	Pack                 *packindex.Pack
	ProviderComponentRef string
	OpName               string
	Payload              []byte

	// EnvelopePath, when non-empty, is checked for contract compatibility
	// before invocation. AllowContractChange bypasses a detected mismatch
	// instead of failing with ContractDriftError.
	EnvelopePath        string
	AllowContractChange bool

	// CallerToken, when non-empty, is an HS256 bearer token verified
	// against CallerTokenSecret before invocation. Providers that don't
	// require an authenticated caller identity leave this empty.
	CallerToken       string
	CallerTokenSecret []byte

	// Timeout bounds this invocation; zero means DefaultOpTimeout. Callers
	// invoking a hook pass the shorter DefaultHookTimeout explicitly.
	Timeout time.Duration
}

// wasmEntryName is the zip entry a pack carries its compiled WASM module
// under, keyed by provider_component_ref.
func wasmEntryName(providerComponentRef string) string {
	return providerComponentRef + ".wasm"
}

// Invoke runs one provider op inside a fresh per-call WASI sandbox, bounded
// by req.Timeout (or DefaultOpTimeout). Concurrency: safe to call from
// multiple goroutines: each call opens its own archive reader and its own
// wazero runtime; no state is shared between invocations.
func Invoke(ctx context.Context, req InvokeRequest) (Outcome, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if req.CallerToken != "" {
		if _, err := VerifyCallerToken(req.CallerToken, req.CallerTokenSecret); err != nil {
			return Outcome{}, err
		}
	}

	if req.EnvelopePath != "" {
		if _, err := os.Stat(req.EnvelopePath); err == nil {
			_, driftErr := envelope.EnsureContractCompatible(req.EnvelopePath, req.Pack.DescribeHash, req.AllowContractChange)
			if driftErr != nil {
				var ce *envelope.ContractDriftError
				if errors.As(driftErr, &ce) {
					return Outcome{}, &ContractDriftError{
						StoredDescribeHash:   ce.StoredDescribeHash,
						ResolvedDescribeHash: ce.ResolvedDescribeHash,
						ComponentID:          ce.ComponentID,
					}
				}
				return Outcome{}, &IoError{Op: "ensure_contract_compatible", Err: driftErr}
			}
		} else if !os.IsNotExist(err) {
			return Outcome{}, &IoError{Op: "stat envelope", Err: err}
		}
	}

	if !declaresOp(req.Pack, req.ProviderComponentRef, req.OpName) {
		return Outcome{}, &OpNotFoundError{ProviderComponentRef: req.ProviderComponentRef, OpName: req.OpName}
	}

	wasmBytes, err := readWasmEntry(req.Pack.PackPath, req.ProviderComponentRef)
	if err != nil {
		return Outcome{}, &PackMissingError{PackPath: req.Pack.PackPath, Detail: err.Error()}
	}

	input, err := json.Marshal(wireRequest{Domain: req.Domain, OpName: req.OpName, Payload: req.Payload})
	if err != nil {
		return Outcome{}, &IoError{Op: "marshal request", Err: err}
	}

	stdout, stderr, err := runSandboxed(ctx, wasmBytes, input)
	if err != nil {
		return Outcome{}, sandboxError(ctx, err)
	}
	if len(stderr) > 0 {
		return Outcome{Raw: stdout}, &InvocationFailedError{Detail: string(stderr)}
	}

	var resp wireResponse
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return Outcome{Raw: stdout}, &InvocationFailedError{Detail: fmt.Sprintf("malformed response: %v", err)}
	}

	outcome := Outcome{Success: resp.Success, Output: resp.Output, Raw: stdout, Error: resp.Error}
	if !resp.Success {
		detail := "component reported failure"
		if resp.Error != nil {
			detail = resp.Error.Message
		}
		return outcome, &InvocationFailedError{Detail: detail}
	}
	return outcome, nil
}

// sandboxError classifies a sandbox execution failure: if the invocation's
// deadline expired or the caller's context was canceled, the literal
// "cancelled" detail is reported regardless of the underlying wazero error
// text; otherwise the underlying error is surfaced verbatim.
func sandboxError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &InvocationFailedError{Detail: "cancelled"}
	}
	return &InvocationFailedError{Detail: err.Error()}
}

// declaresOp reports whether the pack's manifest declares an offer whose
// (provider_component_ref, provider_op) matches the request.
func declaresOp(pack *packindex.Pack, ref, op string) bool {
	for _, o := range pack.Manifest.Offers {
		if o.ProviderComponentRef == ref && o.ProviderOp == op {
			return true
		}
	}
	return false
}

func readWasmEntry(packPath, providerComponentRef string) ([]byte, error) {
	zr, err := zip.OpenReader(packPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	entryName := wasmEntryName(providerComponentRef)
	for _, f := range zr.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", entryName, err)
		}
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", entryName, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("archive has no %s entry", entryName)
}
