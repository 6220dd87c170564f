package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

type versionedStore struct {
	store   *types.Store
	version int64
}

// InMemoryMetadataStore is a MetadataStore backed by plain maps guarded by
// a single RWMutex. It honors the same CAS contract as BoltMetadataStore
// and backs lifecycle-engine unit tests without touching disk.
type InMemoryMetadataStore struct {
	mu           sync.RWMutex
	stores       map[string]*versionedStore // key: cluster+"\x00"+name
	storeConfigs map[string]*types.StoreConfig
	graveyard    map[string]*types.GraveyardEntry
	keySchemas   map[string]*types.KeySchemaEntry
	valueSchemas map[string][]*types.ValueSchemaEntry // key: storeName
	executionIDs map[string]int64
}

// NewInMemoryMetadataStore returns an empty in-memory metadata store.
func NewInMemoryMetadataStore() *InMemoryMetadataStore {
	return &InMemoryMetadataStore{
		stores:       make(map[string]*versionedStore),
		storeConfigs: make(map[string]*types.StoreConfig),
		graveyard:    make(map[string]*types.GraveyardEntry),
		keySchemas:   make(map[string]*types.KeySchemaEntry),
		valueSchemas: make(map[string][]*types.ValueSchemaEntry),
		executionIDs: make(map[string]int64),
	}
}

func memKey(cluster, name string) string {
	return cluster + "\x00" + name
}

func (s *InMemoryMetadataStore) GetStore(cluster, name string) (*types.Store, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.stores[memKey(cluster, name)]
	if !ok {
		return nil, 0, verrors.New(verrors.NotFound, "storage.GetStore", fmt.Errorf("store %s/%s not found", cluster, name))
	}
	cp := *vs.store
	return &cp, vs.version, nil
}

func (s *InMemoryMetadataStore) ListStores(cluster string) ([]*types.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := cluster + "\x00"
	var out []*types.Store
	for k, vs := range s.stores {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			cp := *vs.store
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryMetadataStore) AddStore(cluster string, store *types.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(cluster, store.Name)
	if _, ok := s.stores[key]; ok {
		return verrors.New(verrors.AlreadyExists, "storage.AddStore", fmt.Errorf("store %s/%s already exists", cluster, store.Name))
	}
	cp := *store
	s.stores[key] = &versionedStore{store: &cp, version: 1}
	return nil
}

func (s *InMemoryMetadataStore) UpdateStore(cluster, name string, expectedVersion int64, mutate func(*types.Store) (*types.Store, error)) (*types.Store, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(cluster, name)
	vs, ok := s.stores[key]
	if !ok {
		return nil, 0, verrors.New(verrors.NotFound, "storage.UpdateStore", fmt.Errorf("store %s/%s not found", cluster, name))
	}
	if vs.version != expectedVersion {
		return nil, 0, verrors.Tagged(verrors.Conflict, "storage.UpdateStore", "VersionMismatch",
			fmt.Errorf("expected version %d, found %d", expectedVersion, vs.version))
	}
	current := *vs.store
	updated, err := mutate(&current)
	if err != nil {
		return nil, 0, err
	}
	newVersion := vs.version + 1
	s.stores[key] = &versionedStore{store: updated, version: newVersion}
	return updated, newVersion, nil
}

func (s *InMemoryMetadataStore) DeleteStore(cluster, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, memKey(cluster, name))
	return nil
}

func (s *InMemoryMetadataStore) GetStoreConfig(storeName string) (*types.StoreConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.storeConfigs[storeName]
	if !ok {
		return nil, verrors.New(verrors.NotFound, "storage.GetStoreConfig", fmt.Errorf("store config %s not found", storeName))
	}
	cp := *cfg
	return &cp, nil
}

func (s *InMemoryMetadataStore) PutStoreConfig(cfg *types.StoreConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.storeConfigs[cfg.StoreName] = &cp
	return nil
}

func (s *InMemoryMetadataStore) DeleteStoreConfig(storeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.storeConfigs, storeName)
	return nil
}

func (s *InMemoryMetadataStore) ListStoreConfigs() ([]*types.StoreConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.StoreConfig, 0, len(s.storeConfigs))
	for _, cfg := range s.storeConfigs {
		cp := *cfg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreName < out[j].StoreName })
	return out, nil
}

func (s *InMemoryMetadataStore) GetLargestUsedVersionFromGraveyard(storeName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.graveyard[storeName]
	if !ok {
		return 0, nil
	}
	return entry.LargestUsedVersionNumber, nil
}

func (s *InMemoryMetadataStore) PutGraveyard(entry *types.GraveyardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.graveyard[entry.StoreName]; ok && prior.LargestUsedVersionNumber > entry.LargestUsedVersionNumber {
		entry.LargestUsedVersionNumber = prior.LargestUsedVersionNumber
	}
	cp := *entry
	s.graveyard[entry.StoreName] = &cp
	return nil
}

func (s *InMemoryMetadataStore) AddKeySchema(storeName, schema string) (*types.KeySchemaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.keySchemas[storeName]; ok {
		cp := *existing
		return &cp, nil
	}
	entry := &types.KeySchemaEntry{StoreName: storeName, ID: types.KeySchemaID, Schema: schema}
	s.keySchemas[storeName] = entry
	cp := *entry
	return &cp, nil
}

func (s *InMemoryMetadataStore) GetKeySchema(storeName string) (*types.KeySchemaEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.keySchemas[storeName]
	if !ok {
		return nil, verrors.New(verrors.NotFound, "storage.GetKeySchema", fmt.Errorf("key schema for %s not found", storeName))
	}
	cp := *entry
	return &cp, nil
}

func (s *InMemoryMetadataStore) AddValueSchema(storeName, schema string) (*types.ValueSchemaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.valueSchemas[storeName]
	for _, e := range existing {
		if schemaTextEqual(e.Schema, schema) {
			cp := *e
			return &cp, nil
		}
	}
	for _, e := range existing {
		compatible, err := isSchemaCompatible(e.Schema, schema)
		if err != nil {
			return nil, verrors.Tagged(verrors.Conflict, "storage.AddValueSchema", "SchemaInvalid", err)
		}
		if !compatible {
			return nil, verrors.Tagged(verrors.Conflict, "storage.AddValueSchema", "SchemaIncompatible",
				fmt.Errorf("schema for %s is not backward compatible with existing ID %d", storeName, e.ID))
		}
	}
	nextID := 1
	for _, e := range existing {
		if e.ID >= nextID {
			nextID = e.ID + 1
		}
	}
	entry := &types.ValueSchemaEntry{StoreName: storeName, ID: nextID, Schema: schema}
	s.valueSchemas[storeName] = append(existing, entry)
	cp := *entry
	return &cp, nil
}

func (s *InMemoryMetadataStore) ListValueSchemas(storeName string) ([]*types.ValueSchemaEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.valueSchemas[storeName]
	out := make([]*types.ValueSchemaEntry, len(existing))
	for i, e := range existing {
		cp := *e
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryMetadataStore) NextExecutionID(cluster string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executionIDs[cluster]++
	return s.executionIDs[cluster], nil
}

func (s *InMemoryMetadataStore) Close() error {
	return nil
}
