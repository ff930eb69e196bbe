// SPDX-License-Identifier: Apache-2.0

// Package registry resolves a dataset identifier to its active schema
// contract: it locates versioned definition documents, honours version pins,
// and caches parsed contracts so each (dataset, version) is parsed once.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gvern/soxauto/internal/contract"
)

// Registry resolves dataset identifiers to contracts. It is safe for
// concurrent use.
type Registry struct {
	source    Source
	pins      Pins
	validator *contract.Validator
	cache     *Cache
	logger    *slog.Logger

	mu      sync.RWMutex
	index   map[string][]DocumentRef
	indexed bool

	group singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithPins replaces the default EnvPins.
func WithPins(p Pins) Option {
	return func(r *Registry) { r.pins = p }
}

// WithCache shares a cache between registries.
func WithCache(c *Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithValidator replaces the structural document validator.
func WithValidator(v *contract.Validator) Option {
	return func(r *Registry) { r.validator = v }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates a Registry reading from source. Pins default to the process
// environment.
func New(source Source, opts ...Option) (*Registry, error) {
	r := &Registry{
		source: source,
		pins:   EnvPins{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.validator == nil {
		v, err := contract.NewValidator()
		if err != nil {
			return nil, err
		}
		r.validator = v
	}
	return r, nil
}

// Load returns the active contract for datasetID and its content hash. The
// active version is the pinned one when a pin is set, otherwise the highest
// available version.
func (r *Registry) Load(ctx context.Context, datasetID string) (*contract.SchemaContract, string, error) {
	version, err := r.ActiveVersion(ctx, datasetID)
	if err != nil {
		return nil, "", err
	}
	sc, err := r.LoadVersion(ctx, datasetID, version)
	if err != nil {
		return nil, "", err
	}
	return sc, sc.Hash(), nil
}

// Hash returns the content hash of one contract version. version 0 selects the
// active version.
func (r *Registry) Hash(ctx context.Context, datasetID string, version int) (string, error) {
	if version == 0 {
		_, h, err := r.Load(ctx, datasetID)
		return h, err
	}
	sc, err := r.LoadVersion(ctx, datasetID, version)
	if err != nil {
		return "", err
	}
	return sc.Hash(), nil
}

// ActiveVersion resolves which version of datasetID Load would return.
func (r *Registry) ActiveVersion(ctx context.Context, datasetID string) (int, error) {
	version, pinned, err := r.pins.Pin(datasetID)
	if err != nil {
		return 0, err
	}
	refs, err := r.refs(ctx, datasetID)
	if err != nil {
		return 0, err
	}
	if pinned {
		if _, ok := findRef(refs, version); !ok {
			return 0, &ContractNotFoundError{DatasetID: datasetID, Version: version, Pinned: true}
		}
		r.logger.Debug("using pinned contract version", "dataset_id", datasetID, "version", version)
		return version, nil
	}
	if len(refs) == 0 {
		return 0, &ContractNotFoundError{DatasetID: datasetID}
	}
	return refs[len(refs)-1].Version, nil
}

// LoadVersion returns one specific contract version. Concurrent first loads
// of the same version parse the document once and share the result.
func (r *Registry) LoadVersion(ctx context.Context, datasetID string, version int) (*contract.SchemaContract, error) {
	if sc, ok := r.cache.Get(datasetID, version); ok {
		return sc, nil
	}

	key := datasetID + "@" + strconv.Itoa(version)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if sc, ok := r.cache.Get(datasetID, version); ok {
			return sc, nil
		}
		refs, err := r.refs(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		ref, ok := findRef(refs, version)
		if !ok {
			return nil, &ContractNotFoundError{DatasetID: datasetID, Version: version}
		}
		data, err := r.source.Read(ctx, ref)
		if err != nil {
			return nil, err
		}
		sc, err := contract.Load(r.validator, ref.Location, datasetID, data)
		if err != nil {
			return nil, err
		}
		if sc.Version() != ref.Version {
			return nil, fmt.Errorf("%w: %s declares version %d", contract.ErrInvalidContract, ref.Location, sc.Version())
		}
		sc = r.cache.Put(sc)
		r.logger.Info("contract loaded",
			"dataset_id", datasetID,
			"version", version,
			"hash", sc.Hash(),
			"location", ref.Location)
		return sc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*contract.SchemaContract), nil
}

// Versions lists the available versions of datasetID in ascending order.
func (r *Registry) Versions(ctx context.Context, datasetID string) ([]int, error) {
	refs, err := r.refs(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, &ContractNotFoundError{DatasetID: datasetID}
	}
	versions := make([]int, len(refs))
	for i, ref := range refs {
		versions[i] = ref.Version
	}
	return versions, nil
}

// Datasets lists every dataset with at least one contract, sorted.
func (r *Registry) Datasets(ctx context.Context) ([]string, error) {
	if err := r.ensureIndex(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.index))
	for id := range r.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Refresh re-lists the source so newly added versions become visible. Cached
// contracts are kept: an existing version never changes.
func (r *Registry) Refresh(ctx context.Context) error {
	refs, err := r.source.List(ctx)
	if err != nil {
		return err
	}
	index, err := buildIndex(refs)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.index = index
	r.indexed = true
	r.mu.Unlock()
	r.logger.Debug("contract index refreshed", "source", r.source.Name(), "datasets", len(index))
	return nil
}

func (r *Registry) ensureIndex(ctx context.Context) error {
	r.mu.RLock()
	indexed := r.indexed
	r.mu.RUnlock()
	if indexed {
		return nil
	}
	_, err, _ := r.group.Do("\x00index", func() (interface{}, error) {
		r.mu.RLock()
		indexed := r.indexed
		r.mu.RUnlock()
		if indexed {
			return nil, nil
		}
		return nil, r.Refresh(ctx)
	})
	return err
}

func (r *Registry) refs(ctx context.Context, datasetID string) ([]DocumentRef, error) {
	if err := r.ensureIndex(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[datasetID], nil
}

func findRef(refs []DocumentRef, version int) (DocumentRef, bool) {
	for _, ref := range refs {
		if ref.Version == version {
			return ref, true
		}
	}
	return DocumentRef{}, false
}
