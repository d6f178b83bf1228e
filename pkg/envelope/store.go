package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/greentic/packoperator/pkg/fsatomic"
	"github.com/greentic/packoperator/pkg/manifest"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/statelayout"
)

const filePerm = 0o644

// DefaultBackupCount is how many prior envelope generations are retained
// when Write is called with backup=true, bounding disk growth instead of
// the single unbounded ".bak" sibling a plain atomic write would leave.
const DefaultBackupCount = 1

var canonicalMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// WriteRequest carries everything Write needs to compute provenance and
// serialize a new envelope.
type WriteRequest struct {
	Layout      statelayout.Layout
	Pack        *packindex.Pack
	Tenant      string
	Team        string
	ProviderID  string
	OperationID string
	Config      interface{} // arbitrary JSON-marshalable config value
	Backup      bool
	BackupCount int // 0 means DefaultBackupCount

	// ConfigSchema, when non-empty, is a JSON Schema (draft 2020-12) Config
	// must validate against before it is canonicalized and written. Empty
	// skips validation: most providers have no declared config schema.
	ConfigSchema []byte
}

// SchemaValidationError wraps a jsonschema validation failure so callers
// can distinguish a rejected config from an I/O or encoding failure.
type SchemaValidationError struct {
	ProviderID string
	Err        error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("envelope: config for provider %q failed schema validation: %v", e.ProviderID, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// validateConfigSchema compiles schema as a standalone JSON Schema
// resource and validates config (already JSON-marshaled) against it.
func validateConfigSchema(providerID string, schema, configJSON []byte) error {
	if len(schema) == 0 {
		return nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	resourceURL := "https://packoperator.local/envelope/" + providerID + ".schema.json"
	if err := c.AddResource(resourceURL, strings.NewReader(string(schema))); err != nil {
		return &SchemaValidationError{ProviderID: providerID, Err: fmt.Errorf("load schema: %w", err)}
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return &SchemaValidationError{ProviderID: providerID, Err: fmt.Errorf("compile schema: %w", err)}
	}

	var decoded interface{}
	if err := json.Unmarshal(configJSON, &decoded); err != nil {
		return &SchemaValidationError{ProviderID: providerID, Err: fmt.Errorf("decode config: %w", err)}
	}
	if err := compiled.Validate(decoded); err != nil {
		return &SchemaValidationError{ProviderID: providerID, Err: err}
	}
	return nil
}

// Write computes provenance from req.Pack, JCS-canonicalizes req.Config,
// and atomically writes a new ConfigEnvelope to
// state/runtime/{tenant}/{team}/providers/{provider_id}/config.envelope.cbor,
// returning that path. It also refreshes the adjacent
// _contracts/{resolved_digest}.contract.cbor audit cache.
func Write(req WriteRequest) (string, error) {
	jsonConfig, err := json.Marshal(req.Config)
	if err != nil {
		return "", fmt.Errorf("envelope: marshal config: %w", err)
	}
	if err := validateConfigSchema(req.ProviderID, req.ConfigSchema, jsonConfig); err != nil {
		return "", err
	}
	canonicalConfig, err := jcs.Transform(jsonConfig)
	if err != nil {
		return "", fmt.Errorf("envelope: jcs canonicalize config: %w", err)
	}

	env := ConfigEnvelope{
		ComponentID:    req.Pack.PackID,
		ABIVersion:     req.Pack.Manifest.SchemaVersion,
		ResolvedDigest: req.Pack.ResolvedDigest,
		DescribeHash:   req.Pack.DescribeHash,
		OperationID:    req.OperationID,
		Config:         canonicalConfig,
		UpdatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(req.ConfigSchema) > 0 {
		sum := sha256.Sum256(req.ConfigSchema)
		env.SchemaHash = hex.EncodeToString(sum[:16])
	}

	encoded, err := canonicalMode.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("envelope: cbor encode: %w", err)
	}

	path := req.Layout.ConfigEnvelopePath(req.Tenant, req.Team, req.ProviderID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("envelope: mkdir: %w", err)
	}

	if req.Backup {
		count := req.BackupCount
		if count <= 0 {
			count = DefaultBackupCount
		}
		if err := rotateBackups(path, count); err != nil {
			return "", fmt.Errorf("envelope: rotate backups: %w", err)
		}
	}

	if err := atomicWrite(path, encoded); err != nil {
		return "", err
	}

	contractPath := req.Layout.ContractAuditPath(req.Tenant, req.Team, req.ProviderID, req.Pack.ResolvedDigest)
	contractBytes, err := manifest.Encode(req.Pack.Manifest)
	if err != nil {
		return "", fmt.Errorf("envelope: encode contract audit: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(contractPath), 0o755); err != nil {
		return "", fmt.Errorf("envelope: mkdir contracts: %w", err)
	}
	if err := atomicWrite(contractPath, contractBytes); err != nil {
		return "", fmt.Errorf("envelope: write contract audit: %w", err)
	}

	return path, nil
}

// Read loads and decodes the envelope at path.
func Read(path string) (*ConfigEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("envelope: read %s: %w", path, err)
	}
	var env ConfigEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("envelope: decode %s: %w", path, err)
	}
	return &env, nil
}

// EnsureContractCompatible loads the envelope at path and compares its
// DescribeHash against resolvedDescribeHash, returning ContractDriftError
// on mismatch unless allowContractChange is set.
func EnsureContractCompatible(path, resolvedDescribeHash string, allowContractChange bool) (*ConfigEnvelope, error) {
	env, err := Read(path)
	if err != nil {
		return nil, err
	}
	if env.DescribeHash != resolvedDescribeHash && !allowContractChange {
		return nil, &ContractDriftError{
			StoredDescribeHash:   env.DescribeHash,
			ResolvedDescribeHash: resolvedDescribeHash,
			ComponentID:          env.ComponentID,
		}
	}
	return env, nil
}

// rotateBackups shifts path.bak.1..path.bak.(count-1) up by one generation
// and copies the current file at path into path.bak.1, discarding anything
// beyond count generations. A missing current file is not an error.
func rotateBackups(path string, count int) error {
	current, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for gen := count; gen >= 1; gen-- {
		dst := fmt.Sprintf("%s.bak.%d", path, gen)
		if gen == count {
			_ = os.Remove(dst)
			continue
		}
		src := fmt.Sprintf("%s.bak.%d", path, gen)
		next := fmt.Sprintf("%s.bak.%d", path, gen+1)
		if data, err := os.ReadFile(src); err == nil {
			if err := atomicWrite(next, data); err != nil {
				return err
			}
		}
	}

	return atomicWrite(fmt.Sprintf("%s.bak.1", path), current)
}

func atomicWrite(path string, data []byte) error {
	return fsatomic.WriteFile(path, data, filePerm)
}
