package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greentic/packoperator/pkg/fsatomic"
	"github.com/greentic/packoperator/pkg/offers"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/runner"
	"github.com/greentic/packoperator/pkg/statelayout"
)

const stateFilePerm = 0o644

// Scheduler drives ensure/renew/delete for subscription bindings through
// the runner host, persisting state via the fixed layout.
type Scheduler struct {
	Index  *packindex.Index
	Offers *offers.Registry
	Layout statelayout.Layout

	// bindingLocks serializes operations on the same binding file; a lock
	// is held for the duration of the provider call. Operations on
	// different bindings proceed in parallel: each gets its own
	// *sync.Mutex, created on first use.
	mu           sync.Mutex
	bindingLocks map[string]*sync.Mutex
}

// New returns a Scheduler wired to idx/reg/layout.
func New(idx *packindex.Index, reg *offers.Registry, layout statelayout.Layout) *Scheduler {
	return &Scheduler{Index: idx, Offers: reg, Layout: layout, bindingLocks: make(map[string]*sync.Mutex)}
}

func (s *Scheduler) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.bindingLocks[path]
	if !ok {
		l = &sync.Mutex{}
		s.bindingLocks[path] = l
	}
	return l
}

// Ensure invokes subscription_ensure via the named provider, persists the
// resulting state, and returns it.
func (s *Scheduler) Ensure(ctx context.Context, req EnsureRequest) (*State, error) {
	team := normalizeTeam(req.Team)
	bindingID := req.BindingID
	if bindingID == "" {
		bindingID = uuid.NewString()
	}

	path := s.Layout.SubscriptionBindingPath(req.Provider, req.Tenant, team, bindingID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	requested := State{
		BindingID:       bindingID,
		Provider:        req.Provider,
		Tenant:          req.Tenant,
		Team:            team,
		Resource:        req.Resource,
		ChangeTypes:     req.ChangeTypes,
		NotificationURL: req.NotificationURL,
		ClientState:     req.ClientState,
		User:            req.User,
	}

	result, err := s.invoke(ctx, req.Provider, OpEnsure, requested)
	if err != nil {
		return nil, err
	}
	result.BindingID = bindingID
	result.Provider = req.Provider
	result.Tenant = req.Tenant
	result.Team = team

	if err := s.write(path, result); err != nil {
		return nil, err
	}
	return result, nil
}

// RenewDue enumerates every persisted binding and renews those whose
// expiration is within skew of now. Iteration is sorted by
// (provider, tenant, team, binding_id) for determinism; filesystem
// enumeration order is not guaranteed stable. A single binding's renewal
// failure is recorded in its RenewResult and does not halt the sweep.
func (s *Scheduler) RenewDue(ctx context.Context, skew time.Duration, now time.Time) ([]RenewResult, error) {
	states, err := s.listAll()
	if err != nil {
		return nil, err
	}

	skewMs := skew.Milliseconds()
	nowMs := now.UnixMilli()

	var results []RenewResult
	for _, st := range states {
		if st.ExpirationUnixMs == nil {
			continue
		}
		if *st.ExpirationUnixMs-nowMs >= skewMs {
			continue
		}
		err := s.RenewBinding(ctx, st)
		results = append(results, RenewResult{BindingID: st.BindingID, Err: err})
	}
	return results, nil
}

// RenewBinding unconditionally renews one binding through its provider,
// refreshing and persisting its expiration.
func (s *Scheduler) RenewBinding(ctx context.Context, st *State) error {
	path := s.Layout.SubscriptionBindingPath(st.Provider, st.Tenant, normalizeTeam(st.Team), st.BindingID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.invoke(ctx, st.Provider, OpRenew, *st)
	if err != nil {
		return err
	}
	result.BindingID = st.BindingID
	result.Provider = st.Provider
	result.Tenant = st.Tenant
	result.Team = normalizeTeam(st.Team)

	return s.write(path, result)
}

// DeleteBinding invokes subscription_delete through the provider and, on
// success, removes the persisted state file.
func (s *Scheduler) DeleteBinding(ctx context.Context, st *State) error {
	path := s.Layout.SubscriptionBindingPath(st.Provider, st.Tenant, normalizeTeam(st.Team), st.BindingID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.invoke(ctx, st.Provider, OpDelete, *st); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("subscriptions: remove %s: %w", path, err)
	}
	return nil
}

// Load reads the persisted state for one binding.
func (s *Scheduler) Load(provider, tenant, team, bindingID string) (*State, error) {
	path := s.Layout.SubscriptionBindingPath(provider, tenant, normalizeTeam(team), bindingID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Provider: provider, Tenant: tenant, Team: normalizeTeam(team), BindingID: bindingID}
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("subscriptions: decode %s: %w", path, err)
	}
	return &st, nil
}

// ListAll returns every persisted binding across every provider, tenant,
// and team, sorted by (provider, tenant, team, binding_id).
func (s *Scheduler) ListAll() ([]*State, error) {
	return s.listAll()
}

func (s *Scheduler) listAll() ([]*State, error) {
	root := s.Layout.SubscriptionsRoot()
	var out []*State
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("subscriptions: read %s: %w", path, err)
		}
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("subscriptions: decode %s: %w", path, err)
		}
		out = append(out, &st)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Tenant != b.Tenant {
			return a.Tenant < b.Tenant
		}
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.BindingID < b.BindingID
	})
	return out, nil
}

func (s *Scheduler) write(path string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("subscriptions: encode state: %w", err)
	}
	return fsatomic.WriteFile(path, data, stateFilePerm)
}

// invoke resolves the named provider op among the provider pack's
// subscription offers and calls it via the Runner Host, decoding its
// output back into a State.
func (s *Scheduler) invoke(ctx context.Context, provider, op string, body State) (*State, error) {
	pack, ok := s.Index.ByPackID(provider)
	if !ok {
		return nil, &runner.PackMissingError{PackPath: provider, Detail: "not found in index"}
	}

	var offer *offers.Record
	for _, rec := range s.Offers.SelectSubs("") {
		if rec.PackID == provider && rec.ProviderOp == op {
			offer = rec
			break
		}
	}
	if offer == nil {
		return nil, &ProviderOpNotOfferedError{Provider: provider, Op: op}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("subscriptions: marshal request: %w", err)
	}

	outcome, err := runner.Invoke(ctx, runner.InvokeRequest{
		Domain:               DomainSubscriptions,
		Pack:                 pack,
		ProviderComponentRef: offer.ProviderComponentRef,
		OpName:               offer.ProviderOp,
		Payload:              payload,
	})
	if err != nil {
		return nil, err
	}

	var result State
	if err := json.Unmarshal(outcome.Output, &result); err != nil {
		return nil, fmt.Errorf("subscriptions: decode provider output: %w", err)
	}
	return &result, nil
}
