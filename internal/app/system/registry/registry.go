// Package registry maps (form, version) pairs to their live storage binding:
// the compiled schema plus the physical collection holding that version's
// records.
//
// Concurrency:
//   - the binding map is guarded by one RWMutex and only ever holds fully
//     constructed *Binding values, so readers never see a half-built binding
//   - construction and teardown for a single key are serialized by a per-key
//     lock; different keys proceed in parallel
//   - Binding values are immutable once published
//   - while a key is being rebound it stays listed as a version and is
//     marked pending; Resolve waits for the rebind instead of reporting
//     the version missing
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Binding ties one immutable form version to its schema and collection.
type Binding struct {
	Key             string
	FormID          primitive.ObjectID
	Version         int
	Schema          schema.Descriptor
	Mutable         schema.MutableSet
	PhysicalStoreID string
	Collection      substrate.Collection
}

// Key returns the registry key for a form version: "<formID>-v<version>".
func Key(formID primitive.ObjectID, version int) string {
	return formID.Hex() + "-v" + strconv.Itoa(version)
}

// StoreID returns the physical collection name for a form version.
func StoreID(formID primitive.ObjectID, version int) string {
	return "records-" + Key(formID, version)
}

// Registry owns every Binding in the process.
type Registry struct {
	sub   substrate.Substrate
	log   *zap.Logger
	locks *keyLocks

	mu       sync.RWMutex
	bindings map[string]*Binding
	versions map[primitive.ObjectID]map[int]struct{}
	pending  map[string]struct{}
}

// New returns an empty registry that allocates collections from sub.
func New(sub substrate.Substrate, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sub:      sub,
		log:      logger,
		locks:    newKeyLocks(),
		bindings: make(map[string]*Binding),
		versions: make(map[primitive.ObjectID]map[int]struct{}),
		pending:  make(map[string]struct{}),
	}
}

// Bind allocates an empty physical collection for the version and publishes
// its binding. If the key is already bound, the old binding is withdrawn and
// its collection dropped first; the last Bind for a key wins. Resolve calls
// for the key block until the new binding is published.
func (r *Registry) Bind(ctx context.Context, formID primitive.ObjectID, version int, desc schema.Descriptor, mutable schema.MutableSet) (*Binding, error) {
	return r.bind(ctx, formID, version, desc, mutable, true)
}

// Restore publishes a binding over the version's existing collection,
// creating it only if missing. Used at startup to re-attach versions whose
// records were written by an earlier process.
func (r *Registry) Restore(ctx context.Context, formID primitive.ObjectID, version int, desc schema.Descriptor, mutable schema.MutableSet) (*Binding, error) {
	return r.bind(ctx, formID, version, desc, mutable, false)
}

func (r *Registry) bind(ctx context.Context, formID primitive.ObjectID, version int, desc schema.Descriptor, mutable schema.MutableSet, fresh bool) (*Binding, error) {
	if version < 1 {
		return nil, fmt.Errorf("bind %s: version must be positive, got %d", formID.Hex(), version)
	}
	key := Key(formID, version)
	storeID := StoreID(formID, version)

	unlock := r.locks.Lock(key)
	defer unlock()

	if fresh {
		// Withdraw before dropping so no reader is handed a binding whose
		// collection is being torn down.
		r.withdraw(key)
		if err := r.sub.Drop(ctx, storeID); err != nil {
			r.unpublish(formID, version)
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	col, err := r.sub.Open(ctx, storeID)
	if err != nil {
		r.unpublish(formID, version)
		return nil, fmt.Errorf("bind %s: %w", key, err)
	}

	b := &Binding{
		Key:             key,
		FormID:          formID,
		Version:         version,
		Schema:          desc,
		Mutable:         mutable,
		PhysicalStoreID: storeID,
		Collection:      col,
	}

	r.mu.Lock()
	r.bindings[key] = b
	delete(r.pending, key)
	vs, ok := r.versions[formID]
	if !ok {
		vs = make(map[int]struct{})
		r.versions[formID] = vs
	}
	vs[version] = struct{}{}
	r.mu.Unlock()

	r.log.Debug("form version bound",
		zap.String("key", key),
		zap.String("store", storeID),
		zap.Bool("fresh", fresh),
		zap.Int("fields", desc.Len()))
	return b, nil
}

// Resolve returns the binding for version, or for the form's current
// (highest bound) version when version is nil.
func (r *Registry) Resolve(formID primitive.ObjectID, version *int) (*Binding, error) {
	for {
		b, key, pending := r.lookup(formID, version)
		if b != nil {
			return b, nil
		}
		if !pending {
			return nil, apperr.ErrNotFound
		}
		// Wait out the rebind holding the key, then look again.
		r.locks.Lock(key)()
	}
}

func (r *Registry) lookup(formID primitive.ObjectID, version *int) (*Binding, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := 0
	if version != nil {
		v = *version
	} else {
		for bv := range r.versions[formID] {
			if bv > v {
				v = bv
			}
		}
	}
	key := Key(formID, v)
	if b, ok := r.bindings[key]; ok {
		return b, key, false
	}
	_, pending := r.pending[key]
	return nil, key, pending
}

// Current returns the highest bound version of the form, or 0.
func (r *Registry) Current(formID primitive.ObjectID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur := 0
	for v := range r.versions[formID] {
		if v > cur {
			cur = v
		}
	}
	return cur
}

// Versions returns the bound versions of the form in ascending order.
func (r *Registry) Versions(formID primitive.ObjectID) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.versions[formID]))
	for v := range r.versions[formID] {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of published bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// ReleaseVersion withdraws the version's binding and drops its collection.
// Releasing an absent version is a no-op apart from the (idempotent) drop.
func (r *Registry) ReleaseVersion(ctx context.Context, formID primitive.ObjectID, version int) error {
	key := Key(formID, version)
	unlock := r.locks.Lock(key)
	defer unlock()

	r.unpublish(formID, version)
	if err := r.sub.Drop(ctx, StoreID(formID, version)); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	r.log.Debug("form version released", zap.String("key", key))
	return nil
}

// Release drops every bound version of the form.
func (r *Registry) Release(ctx context.Context, formID primitive.ObjectID) error {
	for _, v := range r.Versions(formID) {
		if err := r.ReleaseVersion(ctx, formID, v); err != nil {
			return err
		}
	}
	return nil
}

// withdraw hides a bound key's binding but keeps its version listed, so
// readers wait for the replacement instead of falling back to another
// version.
func (r *Registry) withdraw(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[key]; ok {
		delete(r.bindings, key)
		r.pending[key] = struct{}{}
	}
}

func (r *Registry) unpublish(formID primitive.ObjectID, version int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Key(formID, version)
	delete(r.bindings, key)
	delete(r.pending, key)
	if vs, ok := r.versions[formID]; ok {
		delete(vs, version)
		if len(vs) == 0 {
			delete(r.versions, formID)
		}
	}
}
