package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketStores       = []byte("stores")
	bucketStoreConfigs = []byte("store_configs")
	bucketGraveyard    = []byte("graveyard")
	bucketKeySchemas   = []byte("key_schemas")
	bucketValueSchemas = []byte("value_schemas")
	bucketExecutionIDs = []byte("execution_ids")
)

// envelope wraps every persisted value with a CAS version token so
// UpdateStore can detect concurrent writers.
type envelope struct {
	Value   json.RawMessage `json:"value"`
	Version int64           `json:"version"`
}

// BoltMetadataStore implements MetadataStore using BoltDB.
type BoltMetadataStore struct {
	db *bolt.DB
}

// NewBoltMetadataStore opens (creating if necessary) the metadata store
// database under dataDir.
func NewBoltMetadataStore(dataDir string) (*BoltMetadataStore, error) {
	dbPath := filepath.Join(dataDir, "venice-metadata.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, verrors.New(verrors.MetadataUnavailable, "storage.NewBoltMetadataStore", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketStores,
			bucketStoreConfigs,
			bucketGraveyard,
			bucketKeySchemas,
			bucketValueSchemas,
			bucketExecutionIDs,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, verrors.New(verrors.MetadataUnavailable, "storage.NewBoltMetadataStore", err)
	}

	return &BoltMetadataStore{db: db}, nil
}

func (s *BoltMetadataStore) Close() error {
	return s.db.Close()
}

func storeKey(cluster, name string) []byte {
	return []byte(cluster + "\x00" + name)
}

func valueSchemaKey(storeName string, id int) []byte {
	return []byte(fmt.Sprintf("%s\x00%010d", storeName, id))
}

func getEnvelope(b *bolt.Bucket, key []byte) (*envelope, bool) {
	data := b.Get(key)
	if data == nil {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	return &env, true
}

func putEnvelope(b *bolt.Bucket, key []byte, value interface{}, version int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	env := envelope{Value: raw, Version: version}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// GetStore returns a store along with its current CAS version token.
func (s *BoltMetadataStore) GetStore(cluster, name string) (*types.Store, int64, error) {
	var store types.Store
	var version int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStores)
		env, ok := getEnvelope(b, storeKey(cluster, name))
		if !ok {
			return verrors.New(verrors.NotFound, "storage.GetStore", fmt.Errorf("store %s/%s not found", cluster, name))
		}
		if err := json.Unmarshal(env.Value, &store); err != nil {
			return verrors.New(verrors.MetadataUnavailable, "storage.GetStore", err)
		}
		version = env.Version
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &store, version, nil
}

// ListStores returns every store registered in the given cluster.
func (s *BoltMetadataStore) ListStores(cluster string) ([]*types.Store, error) {
	var stores []*types.Store
	prefix := []byte(cluster + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStores)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return err
			}
			var store types.Store
			if err := json.Unmarshal(env.Value, &store); err != nil {
				return err
			}
			stores = append(stores, &store)
		}
		return nil
	})
	if err != nil {
		return nil, verrors.New(verrors.MetadataUnavailable, "storage.ListStores", err)
	}
	return stores, nil
}

// AddStore creates a brand new store at CAS version 1.
func (s *BoltMetadataStore) AddStore(cluster string, store *types.Store) error {
	key := storeKey(cluster, store.Name)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStores)
		if _, ok := getEnvelope(b, key); ok {
			return verrors.New(verrors.AlreadyExists, "storage.AddStore", fmt.Errorf("store %s/%s already exists", cluster, store.Name))
		}
		return putEnvelope(b, key, store, 1)
	})
	return err
}

// UpdateStore applies mutate to the current value and commits only if
// expectedVersion still matches the persisted version.
func (s *BoltMetadataStore) UpdateStore(cluster, name string, expectedVersion int64, mutate func(*types.Store) (*types.Store, error)) (*types.Store, int64, error) {
	var result *types.Store
	var newVersion int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStores)
		key := storeKey(cluster, name)
		env, ok := getEnvelope(b, key)
		if !ok {
			return verrors.New(verrors.NotFound, "storage.UpdateStore", fmt.Errorf("store %s/%s not found", cluster, name))
		}
		if env.Version != expectedVersion {
			return verrors.Tagged(verrors.Conflict, "storage.UpdateStore", "VersionMismatch",
				fmt.Errorf("expected version %d, found %d", expectedVersion, env.Version))
		}
		var current types.Store
		if err := json.Unmarshal(env.Value, &current); err != nil {
			return verrors.New(verrors.MetadataUnavailable, "storage.UpdateStore", err)
		}
		updated, err := mutate(&current)
		if err != nil {
			return err
		}
		newVersion = env.Version + 1
		if err := putEnvelope(b, key, updated, newVersion); err != nil {
			return verrors.New(verrors.MetadataUnavailable, "storage.UpdateStore", err)
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result, newVersion, nil
}

// DeleteStore removes a store record entirely.
func (s *BoltMetadataStore) DeleteStore(cluster, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStores)
		return b.Delete(storeKey(cluster, name))
	})
}

// GetStoreConfig returns the discovery record for a store name.
func (s *BoltMetadataStore) GetStoreConfig(storeName string) (*types.StoreConfig, error) {
	var cfg types.StoreConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStoreConfigs)
		env, ok := getEnvelope(b, []byte(storeName))
		if !ok {
			return verrors.New(verrors.NotFound, "storage.GetStoreConfig", fmt.Errorf("store config %s not found", storeName))
		}
		return json.Unmarshal(env.Value, &cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PutStoreConfig upserts a store's discovery record.
func (s *BoltMetadataStore) PutStoreConfig(cfg *types.StoreConfig) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStoreConfigs)
		existing, ok := getEnvelope(b, []byte(cfg.StoreName))
		version := int64(1)
		if ok {
			version = existing.Version + 1
		}
		return putEnvelope(b, []byte(cfg.StoreName), cfg, version)
	})
}

func (s *BoltMetadataStore) DeleteStoreConfig(storeName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStoreConfigs)
		return b.Delete([]byte(storeName))
	})
}

// ListStoreConfigs returns every discovery record, used by the Store
// Migration Monitor to find in-flight migrations.
func (s *BoltMetadataStore) ListStoreConfigs() ([]*types.StoreConfig, error) {
	var configs []*types.StoreConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStoreConfigs)
		return b.ForEach(func(k, v []byte) error {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return err
			}
			var cfg types.StoreConfig
			if err := json.Unmarshal(env.Value, &cfg); err != nil {
				return err
			}
			configs = append(configs, &cfg)
			return nil
		})
	})
	if err != nil {
		return nil, verrors.New(verrors.MetadataUnavailable, "storage.ListStoreConfigs", err)
	}
	return configs, nil
}

// GetLargestUsedVersionFromGraveyard returns 0 if the store name has never
// been deleted before.
func (s *BoltMetadataStore) GetLargestUsedVersionFromGraveyard(storeName string) (int, error) {
	var number int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGraveyard)
		env, ok := getEnvelope(b, []byte(storeName))
		if !ok {
			return nil
		}
		var entry types.GraveyardEntry
		if err := json.Unmarshal(env.Value, &entry); err != nil {
			return err
		}
		number = entry.LargestUsedVersionNumber
		return nil
	})
	if err != nil {
		return 0, verrors.New(verrors.MetadataUnavailable, "storage.GetLargestUsedVersionFromGraveyard", err)
	}
	return number, nil
}

// PutGraveyard records the largest version number ever used by a store
// name, bumping it forward only (never decreasing it).
func (s *BoltMetadataStore) PutGraveyard(entry *types.GraveyardEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGraveyard)
		existing, ok := getEnvelope(b, []byte(entry.StoreName))
		version := int64(1)
		if ok {
			version = existing.Version + 1
			var prior types.GraveyardEntry
			if err := json.Unmarshal(existing.Value, &prior); err == nil {
				if prior.LargestUsedVersionNumber > entry.LargestUsedVersionNumber {
					entry.LargestUsedVersionNumber = prior.LargestUsedVersionNumber
				}
			}
		}
		return putEnvelope(b, []byte(entry.StoreName), entry, version)
	})
}

// AddKeySchema registers the singular key schema for a store, at KeySchemaID.
func (s *BoltMetadataStore) AddKeySchema(storeName, schema string) (*types.KeySchemaEntry, error) {
	var result *types.KeySchemaEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKeySchemas)
		if existing, ok := getEnvelope(b, []byte(storeName)); ok {
			var prior types.KeySchemaEntry
			if err := json.Unmarshal(existing.Value, &prior); err != nil {
				return err
			}
			result = &prior
			return nil
		}
		entry := &types.KeySchemaEntry{StoreName: storeName, ID: types.KeySchemaID, Schema: schema}
		result = entry
		return putEnvelope(b, []byte(storeName), entry, 1)
	})
	if err != nil {
		return nil, verrors.New(verrors.MetadataUnavailable, "storage.AddKeySchema", err)
	}
	return result, nil
}

func (s *BoltMetadataStore) GetKeySchema(storeName string) (*types.KeySchemaEntry, error) {
	var entry types.KeySchemaEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKeySchemas)
		env, ok := getEnvelope(b, []byte(storeName))
		if !ok {
			return verrors.New(verrors.NotFound, "storage.GetKeySchema", fmt.Errorf("key schema for %s not found", storeName))
		}
		return json.Unmarshal(env.Value, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// AddValueSchema registers a new value schema, enforcing compatibility
// against every prior schema for the store. An identical schema to an
// existing entry returns that entry's ID idempotently.
func (s *BoltMetadataStore) AddValueSchema(storeName, schema string) (*types.ValueSchemaEntry, error) {
	var result *types.ValueSchemaEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketValueSchemas)
		existing, err := listValueSchemasTx(b, storeName)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if schemaTextEqual(e.Schema, schema) {
				result = e
				return nil
			}
		}
		for _, e := range existing {
			compatible, err := isSchemaCompatible(e.Schema, schema)
			if err != nil {
				return verrors.Tagged(verrors.Conflict, "storage.AddValueSchema", "SchemaInvalid", err)
			}
			if !compatible {
				return verrors.Tagged(verrors.Conflict, "storage.AddValueSchema", "SchemaIncompatible",
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
		result = entry
		return putEnvelope(b, valueSchemaKey(storeName, nextID), entry, 1)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func listValueSchemasTx(b *bolt.Bucket, storeName string) ([]*types.ValueSchemaEntry, error) {
	var entries []*types.ValueSchemaEntry
	prefix := []byte(storeName + "\x00")
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
		var env envelope
		if err := json.Unmarshal(v, &env); err != nil {
			return nil, err
		}
		var entry types.ValueSchemaEntry
		if err := json.Unmarshal(env.Value, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// ListValueSchemas returns all registered value schema versions for a
// store, ordered by ID ascending.
func (s *BoltMetadataStore) ListValueSchemas(storeName string) ([]*types.ValueSchemaEntry, error) {
	var entries []*types.ValueSchemaEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		entries, err = listValueSchemasTx(tx.Bucket(bucketValueSchemas), storeName)
		return err
	})
	if err != nil {
		return nil, verrors.New(verrors.MetadataUnavailable, "storage.ListValueSchemas", err)
	}
	return entries, nil
}

// NextExecutionID hands out a monotonically increasing per-cluster counter.
func (s *BoltMetadataStore) NextExecutionID(cluster string) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutionIDs)
		key := []byte(cluster)
		data := b.Get(key)
		if data != nil {
			id = int64(binary.BigEndian.Uint64(data)) + 1
		} else {
			id = 1
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(id))
		return b.Put(key, buf)
	})
	if err != nil {
		return 0, verrors.New(verrors.MetadataUnavailable, "storage.NextExecutionID", err)
	}
	return id, nil
}

func schemaTextEqual(a, b string) bool {
	var av, bv interface{}
	if json.Unmarshal([]byte(a), &av) != nil || json.Unmarshal([]byte(b), &bv) != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	na, _ := json.Marshal(av)
	nb, _ := json.Marshal(bv)
	return string(na) == string(nb)
}

// isSchemaCompatible implements a minimal structural compatibility check
// over the small JSON-schema-literal encoding used by tests: a bare
// primitive string ("string", "int", ...) or a record object of the form
// {"type":"record","fields":[{"name":...,"type":...,"default":...}, ...]}.
// Avro schema resolution in full is explicitly out of scope.
func isSchemaCompatible(oldSchema, newSchema string) (bool, error) {
	var oldVal, newVal interface{}
	if err := json.Unmarshal([]byte(oldSchema), &oldVal); err != nil {
		return false, fmt.Errorf("invalid existing schema: %w", err)
	}
	if err := json.Unmarshal([]byte(newSchema), &newVal); err != nil {
		return false, fmt.Errorf("invalid new schema: %w", err)
	}

	oldStr, oldIsPrimitive := oldVal.(string)
	newStr, newIsPrimitive := newVal.(string)
	if oldIsPrimitive && newIsPrimitive {
		// A primitive type narrowing (e.g. "string" -> "int") is never
		// compatible; identical primitives were already handled by the
		// idempotent-schema check above.
		return oldStr == newStr, nil
	}
	if oldIsPrimitive != newIsPrimitive {
		// Promoting a primitive schema into a record (or the reverse) is
		// treated as a compatible widening: a store's first schema may be
		// replaced by a structurally richer one before any data has been
		// written under it.
		return true, nil
	}

	oldFields, err := recordFields(oldVal)
	if err != nil {
		return false, err
	}
	newFields, err := recordFields(newVal)
	if err != nil {
		return false, err
	}

	newByName := make(map[string]map[string]interface{}, len(newFields))
	for _, f := range newFields {
		if name, ok := f["name"].(string); ok {
			newByName[name] = f
		}
	}

	for _, f := range oldFields {
		name, _ := f["name"].(string)
		nf, stillPresent := newByName[name]
		if !stillPresent {
			// Field removed without a default in the old schema is fine
			// only if the old field itself carried a default (readers on
			// the old schema tolerate its disappearance).
			if _, hadDefault := f["default"]; !hadDefault {
				return false, nil
			}
			continue
		}
		if f["type"] != nf["type"] {
			// Type narrowed/changed for a field that still exists.
			return false, nil
		}
	}
	return true, nil
}

func recordFields(v interface{}) ([]map[string]interface{}, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("schema is neither a primitive type name nor a record object")
	}
	raw, _ := obj["fields"].([]interface{})
	fields := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]interface{}); ok {
			fields = append(fields, m)
		}
	}
	return fields, nil
}
