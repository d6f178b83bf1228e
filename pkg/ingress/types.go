// Package ingress implements the ingress and hook engine: assembles a
// normalized request, invokes a provider's ingest op, then iterates the
// post-ingress hook chain applying each hook's control directive.
package ingress

import "encoding/json"

// IngressRequestV1 is the normalized request handed to a provider's
// ingest op.
type IngressRequestV1 struct {
	Method        string              `json:"method"`
	Path          string              `json:"path"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Query         map[string][]string `json:"query,omitempty"`
	Body          []byte              `json:"body,omitempty"`
	Tenant        string              `json:"tenant"`
	Team          string              `json:"team,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	BindingID     string              `json:"binding_id,omitempty"`
	Domain        string              `json:"domain,omitempty"`
	Pack          string              `json:"pack"`
	Flow          string              `json:"flow,omitempty"`
	Node          string              `json:"node,omitempty"`
}

// IngressResponse is the (possibly hook-rewritten) outward response.
type IngressResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Event is an opaque, provider-defined event emitted alongside a response.
type Event = json.RawMessage

// ingestOutput is what a provider's ingest op is expected to return.
type ingestOutput struct {
	Response IngressResponse `json:"response"`
	Events   []Event         `json:"events,omitempty"`
}

// hookBody is what each post-ingress hook invocation receives.
type hookBody struct {
	Stage         string          `json:"stage"`
	Contract      string          `json:"contract"`
	Provider      string          `json:"provider"`
	Request       IngressRequestV1 `json:"request"`
	Response      IngressResponse `json:"response"`
	Events        []Event         `json:"events"`
	Tenant        string          `json:"tenant"`
	Team          string          `json:"team,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// PolicyForbiddenError is returned when gmap denies the requested path.
type PolicyForbiddenError struct {
	Tenant string
	Team   string
	Path   string
}

func (e *PolicyForbiddenError) Error() string {
	return "ingress: policy_forbidden for " + e.Tenant + "/" + e.Team + " at " + e.Path
}
