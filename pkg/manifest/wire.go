package manifest

// wireManifest mirrors the canonical-CBOR layout of manifest.cbor. Fields
// that may be encoded either as a literal string or as an integer index into
// a sibling symbol table are typed as `interface{}` and resolved by
// resolveSymbolic after decode.
type wireManifest struct {
	PackID        interface{}            `cbor:"pack_id"`
	SchemaVersion string                 `cbor:"schema_version"`
	Meta          *wireMeta              `cbor:"meta"`
	Flows         []interface{}          `cbor:"flows"`
	Extensions    map[string]wireExtension `cbor:"extensions"`
	Offers        map[string]wireOffer   `cbor:"offers"`
	Symbols       *wireSymbols           `cbor:"symbols"`
}

type wireMeta struct {
	EntryFlows []interface{} `cbor:"entry_flows"`
}

type wireSymbols struct {
	PackIDs    []string `cbor:"pack_ids"`
	FlowIDs    []string `cbor:"flow_ids"`
	Entrypoints []string `cbor:"entrypoints"`
}

type wireExtension struct {
	SchemaVersion int                    `cbor:"schema_version"`
	Inline        map[string]interface{} `cbor:"inline"`
}

type wireOffer struct {
	Stage                interface{} `cbor:"stage"`
	Contract             string      `cbor:"contract"`
	Priority             *int32      `cbor:"priority"`
	ProviderComponentRef interface{} `cbor:"provider_component_ref"`
	ProviderOp           interface{} `cbor:"provider_op"`
}

// wireCapabilityOffer mirrors one entry of the ExtCapabilities extension's
// inline "offers" array.
type wireCapabilityOffer struct {
	StableID             string      `cbor:"stable_id"`
	CapID                string      `cbor:"cap_id"`
	Version              string      `cbor:"version"`
	ProviderComponentRef interface{} `cbor:"provider_component_ref"`
	ProviderOp           interface{} `cbor:"provider_op"`
	Priority             *int32      `cbor:"priority"`
	RequiresSetup        bool        `cbor:"requires_setup"`
	SetupQARef           string      `cbor:"setup_qa_ref"`
	Scope                *wireScope  `cbor:"scope"`
	AppliesToOps         []string    `cbor:"applies_to_ops"`
}

type wireScope struct {
	Envs    []string `cbor:"envs"`
	Tenants []string `cbor:"tenants"`
	Teams   []string `cbor:"teams"`
}

const defaultPriority int32 = 100
