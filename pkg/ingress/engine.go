package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greentic/packoperator/pkg/gmap"
	"github.com/greentic/packoperator/pkg/manifest"
	"github.com/greentic/packoperator/pkg/offers"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/runner"
)

// Engine wires the pack index, offer registry, gmap resolver, and runner
// host together to answer Process.
type Engine struct {
	Index    *packindex.Index
	Offers   *offers.Registry
	Resolver *gmap.Resolver

	HooksEnabled     bool
	EnableEventHooks bool

	// HookRateLimit, when non-nil, bounds how often any single hook-owning
	// pack may be invoked across the chain. Nil means unlimited.
	HookRateLimit *HookRateLimiter

	// HookTimeout bounds each individual hook invocation in the chain;
	// zero means runner.DefaultHookTimeout.
	HookTimeout time.Duration
}

func (e *Engine) hookTimeout() time.Duration {
	if e.HookTimeout <= 0 {
		return runner.DefaultHookTimeout
	}
	return e.HookTimeout
}

// Process runs the full ingress pipeline: policy check, ingest
// invocation, then the post-ingress hook chain.
func (e *Engine) Process(ctx context.Context, req IngressRequestV1) (IngressResponse, []Event, error) {
	if req.BindingID == "" {
		req.BindingID = bindingIDFromPath(req.Path)
	}

	queryPath := req.Pack
	if req.Flow != "" {
		queryPath += "/" + req.Flow
	}
	if req.Node != "" {
		queryPath += "/" + req.Node
	}
	if !e.Resolver.IsAllowed(req.Tenant, req.Team, queryPath) {
		return IngressResponse{Status: 403, Body: mustJSON(map[string]string{"reason_code": "policy_forbidden"})},
			nil, &PolicyForbiddenError{Tenant: req.Tenant, Team: req.Team, Path: queryPath}
	}

	pack, ok := e.Index.ByPackID(req.Pack)
	if !ok {
		return IngressResponse{}, nil, &runner.PackMissingError{PackPath: req.Pack, Detail: "not found in index"}
	}

	ingestOp := ingestOpFor(pack)
	if ingestOp == nil {
		return IngressResponse{}, nil, &runner.OpNotFoundError{ProviderComponentRef: req.Pack, OpName: "ingest"}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return IngressResponse{}, nil, err
	}
	outcome, err := runner.Invoke(ctx, runner.InvokeRequest{
		Domain:               req.Domain,
		Pack:                 pack,
		ProviderComponentRef: ingestOp.ProviderComponentRef,
		OpName:               ingestOp.ProviderOp,
		Payload:              payload,
	})
	if err != nil {
		return IngressResponse{}, nil, err
	}

	var out ingestOutput
	if err := json.Unmarshal(outcome.Output, &out); err != nil {
		return IngressResponse{}, nil, err
	}

	response, events := out.Response, out.Events

	if e.skipHooks(req) {
		return response, events, nil
	}

	return e.runHookChain(ctx, req, response, events)
}

func (e *Engine) skipHooks(req IngressRequestV1) bool {
	if !e.HooksEnabled {
		return true
	}
	if req.Domain == "events" && !e.EnableEventHooks {
		return true
	}
	return false
}

func (e *Engine) runHookChain(ctx context.Context, req IngressRequestV1, response IngressResponse, events []Event) (IngressResponse, []Event, error) {
	hooks := e.Offers.SelectHooks(manifest.StagePostIngress, manifest.HookControlContract)

	for _, hook := range hooks {
		hookPack, ok := e.Index.ByPackID(hook.PackID)
		if !ok {
			slog.Warn("ingress: hook pack missing, skipping", "pack_id", hook.PackID, "offer_key", hook.Key)
			continue
		}

		if !e.HookRateLimit.Allow(hook.PackID) {
			slog.Warn("ingress: hook invocation rate-limited, treating as continue", "pack_id", hook.PackID, "offer_key", hook.Key)
			continue
		}

		body := hookBody{
			Stage:         hook.Stage,
			Contract:      hook.Contract,
			Provider:      req.Pack,
			Request:       req,
			Response:      response,
			Events:        events,
			Tenant:        req.Tenant,
			Team:          req.Team,
			CorrelationID: req.CorrelationID,
		}
		payload, err := json.Marshal(body)
		if err != nil {
			slog.Warn("ingress: failed to marshal hook body, treating as continue", "offer_key", hook.Key, "err", err)
			continue
		}

		outcome, err := runner.Invoke(ctx, runner.InvokeRequest{
			Domain:               req.Domain,
			Pack:                 hookPack,
			ProviderComponentRef: hook.ProviderComponentRef,
			OpName:               hook.ProviderOp,
			Payload:              payload,
			Timeout:              e.hookTimeout(),
		})
		if err != nil {
			// A timed-out hook is logged and skipped exactly like one that
			// errors; it never short-circuits the chain.
			slog.Warn("hook invocation failed", "stage", hook.Stage, "offer", hook.Key, "err", err)
			continue
		}

		directive, err := ParseControlDirective(outcome.Output)
		if err != nil {
			slog.Warn("ingress: hook directive parse error", "event", "hook.directive.parse_error", "offer", hook.Key, "err", err)
			continue
		}

		switch directive.Action {
		case ActionContinue:
			continue
		case ActionRespond:
			return ApplyReply(directive, 200), nil, nil
		case ActionDeny:
			resp := ApplyReply(directive, 403)
			if directive.ReasonCode != "" {
				if resp.Headers == nil {
					resp.Headers = map[string]string{}
				}
				resp.Headers["x-reason-code"] = directive.ReasonCode
			}
			return resp, nil, nil
		case ActionDispatch:
			resp, evs, stop, err := e.runDispatch(ctx, req, response, events, directive)
			if !stop {
				continue
			}
			return resp, evs, err
		}
	}

	return response, events, nil
}

// ApplyReply builds the response for a respond/deny directive: a Card
// (optionally alongside Text) produces a JSON {text,card} body with
// content-type: application/json; Text alone produces a raw text/plain
// body; an explicit Body is an escape hatch used verbatim with whatever
// content-type the hook set on Headers, if any.
func ApplyReply(d *ControlDirective, defaultStatus int) IngressResponse {
	status := d.Status
	if status == 0 {
		status = defaultStatus
	}
	resp := IngressResponse{Status: status, Headers: d.Headers}

	switch {
	case len(d.Card) > 0:
		payload := map[string]interface{}{"card": d.Card}
		if d.Text != "" {
			payload["text"] = d.Text
		}
		body, err := json.Marshal(payload)
		if err == nil {
			resp.Body = body
		}
		resp.Headers = withContentType(resp.Headers, "application/json")
	case d.Text != "":
		resp.Body = json.RawMessage(d.Text)
		resp.Headers = withContentType(resp.Headers, "text/plain")
	case len(d.Body) > 0:
		resp.Body = d.Body
	}
	return resp
}

func withContentType(headers map[string]string, value string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["content-type"] = value
	return out
}

// runDispatch invokes the dispatch target's entry flow. Its bool result
// reports whether the hook chain stops here; an unresolvable target pack
// is handled like a directive parse error and the chain continues.
func (e *Engine) runDispatch(ctx context.Context, req IngressRequestV1, response IngressResponse, events []Event, d *ControlDirective) (IngressResponse, []Event, bool, error) {
	target, ok := resolveDispatchPack(e.Index, d.Pack)
	if !ok {
		slog.Warn("ingress: dispatch target pack not found, treating as parse error", "event", "hook.directive.parse_error", "pack", d.Pack)
		return response, events, false, nil
	}

	entrypoints := target.Manifest.Entrypoints()
	entryOp := d.Flow
	if entryOp == "" && len(target.Manifest.EntryFlows) > 0 {
		entryOp = target.Manifest.EntryFlows[0]
	}

	payload, err := json.Marshal(map[string]interface{}{
		"request":  req,
		"response": response,
		"events":   events,
		"target":   d,
	})
	if err != nil {
		return response, events, true, err
	}

	providerRef := target.PackID
	if len(entrypoints) > 0 {
		providerRef = entrypoints[0]
	}

	if _, err := runner.Invoke(ctx, runner.InvokeRequest{
		Domain:               req.Domain,
		Pack:                 target,
		ProviderComponentRef: providerRef,
		OpName:               entryOp,
		Payload:              payload,
	}); err != nil {
		slog.Warn("ingress: dispatch invocation failed", "target_pack", d.Pack, "err", err)
		return response, events, true, nil
	}

	body, _ := json.Marshal(map[string]interface{}{"ok": true, "dispatched": true, "target": d})
	return IngressResponse{Status: 202, Body: body}, nil, true, nil
}

// resolveDispatchPack accepts a pack-id lookup or a bare file-stem match
// against every indexed pack's path.
func resolveDispatchPack(idx *packindex.Index, ref string) (*packindex.Pack, bool) {
	if p, ok := idx.ByPackID(ref); ok {
		return p, true
	}
	for _, p := range idx.Packs() {
		if packindex.FileStem(p.PackPath) == ref {
			return p, true
		}
	}
	return nil, false
}

func ingestOpFor(pack *packindex.Pack) *manifest.Offer {
	for i := range pack.Manifest.Offers {
		o := &pack.Manifest.Offers[i]
		if o.ProviderOp == "ingest" {
			return o
		}
	}
	return nil
}

// bindingIDFromPath derives a binding id from the request path: the last
// non-empty segment, when it parses as a UUID. Paths that don't end in a
// binding id simply leave the field empty.
func bindingIDFromPath(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if _, err := uuid.Parse(segments[i]); err == nil {
			return segments[i]
		}
		return ""
	}
	return ""
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
