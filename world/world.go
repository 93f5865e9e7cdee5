package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/phsym/console-slog"

	"github.com/timson/worlddb/storage"
)

var logger = slog.New(
	console.NewHandler(os.Stderr, &console.HandlerOptions{Level: slog.LevelWarn}),
)

func SetLogger(l *slog.Logger) {
	logger = l
}

// RecordStore is the part of storage.DB the world layer needs.
type RecordStore interface {
	WriteRecord(payload []byte) (storage.EntryAddress, error)
	ReadRecord(addr storage.EntryAddress) ([]byte, error)
	Root() storage.EntryAddress
	SetRoot(addr storage.EntryAddress)
	Sync() error
}

var _ RecordStore = (*storage.DB)(nil)

const catalogVersion = 1

// catalog is the record the DB root points at.
type catalog struct {
	Version     int                 `json:"version"`
	Collections []catalogCollection `json:"collections"`
}

type catalogCollection struct {
	Meta    CollectionMeta         `json:"meta"`
	Entries []storage.EntryAddress `json:"entries"`
}

type collection struct {
	meta    CollectionMeta
	entries []storage.EntryAddress
}

// World is a set of named feature collections stored as records. Each feature
// is one record; the collection list and entry addresses live in a catalog
// record written by Save.
type World struct {
	lock        sync.RWMutex
	store       RecordStore
	collections map[string]*collection
	dirty       bool
}

var _ Registry = (*World)(nil)

func New(store RecordStore) *World {
	return &World{
		store:       store,
		collections: make(map[string]*collection),
	}
}

// Load reads the catalog the store root points at. A store without a root
// yields an empty world.
func Load(store RecordStore) (*World, error) {
	w := New(store)
	root := store.Root()
	if root.IsZero() {
		logger.Debug("no catalog root, starting empty world")
		return w, nil
	}
	data, err := store.ReadRecord(root)
	if err != nil {
		return nil, fmt.Errorf("could not read catalog at %s: %w", root, err)
	}
	var cat catalog
	if err = json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCatalog, err)
	}
	if cat.Version != catalogVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadCatalog, cat.Version)
	}
	for _, item := range cat.Collections {
		if err = item.Meta.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCatalog, err)
		}
		if _, exists := w.collections[item.Meta.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate collection %q", ErrBadCatalog, item.Meta.Name)
		}
		w.collections[item.Meta.Name] = &collection{meta: item.Meta, entries: item.Entries}
	}
	logger.Info("world loaded", "root", root, "collections", len(w.collections))
	return w, nil
}

func (w *World) CreateCollection(meta CollectionMeta) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	if _, exists := w.collections[meta.Name]; exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, meta.Name)
	}
	w.collections[meta.Name] = &collection{meta: meta}
	w.dirty = true
	logger.Debug("collection created", "name", meta.Name, "type", meta.Schema.TypeName)
	return nil
}

func (w *World) Lookup(name string) (CollectionMeta, bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	c, ok := w.collections[name]
	if !ok {
		return CollectionMeta{}, false
	}
	return c.meta, true
}

func (w *World) Collections() map[string]CollectionMeta {
	w.lock.RLock()
	defer w.lock.RUnlock()
	result := make(map[string]CollectionMeta, len(w.collections))
	for name, c := range w.collections {
		result[name] = c.meta
	}
	return result
}

// Names returns the collection names in sorted order.
func (w *World) Names() []string {
	w.lock.RLock()
	defer w.lock.RUnlock()
	names := make([]string, 0, len(w.collections))
	for name := range w.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (w *World) Count(name string) (int, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	c, ok := w.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return len(c.entries), nil
}

// Stats maps every collection to its feature count.
func (w *World) Stats() map[string]int {
	w.lock.RLock()
	defer w.lock.RUnlock()
	result := make(map[string]int, len(w.collections))
	for name, c := range w.collections {
		result[name] = len(c.entries)
	}
	return result
}

// Insert checks feature against the collection schema and stores it. A feature
// without a type property gets the schema type name.
func (w *World) Insert(name string, feature *geojson.Feature) (storage.EntryAddress, error) {
	if feature == nil {
		return storage.EntryAddress{}, fmt.Errorf("%w: nil feature", ErrInvalidFeature)
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	c, ok := w.collections[name]
	if !ok {
		return storage.EntryAddress{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	if err := checkFeature(c.meta.Schema, feature); err != nil {
		return storage.EntryAddress{}, err
	}
	if feature.Properties == nil {
		feature.Properties = geojson.Properties{}
	}
	if _, ok = feature.Properties[TypeProperty]; !ok {
		feature.Properties[TypeProperty] = c.meta.Schema.TypeName
	}

	payload, err := feature.MarshalJSON()
	if err != nil {
		return storage.EntryAddress{}, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	addr, err := w.store.WriteRecord(payload)
	if err != nil {
		return storage.EntryAddress{}, err
	}
	c.entries = append(c.entries, addr)
	w.dirty = true
	return addr, nil
}

// checkFeature matches feature against schema. A null geometry is valid GeoJSON
// and is stored as is.
func checkFeature(schema Schema, feature *geojson.Feature) error {
	for _, property := range schema.Mandatory {
		if _, ok := feature.Properties[property]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingProperty, property)
		}
	}
	if value, ok := feature.Properties[TypeProperty]; ok {
		typeName, isString := value.(string)
		if !isString || typeName != schema.TypeName {
			return fmt.Errorf("%w: got %v, want %s", ErrTypeMismatch, value, schema.TypeName)
		}
	}
	return nil
}

// Payload returns the raw record bytes stored at addr.
func (w *World) Payload(addr storage.EntryAddress) ([]byte, error) {
	return w.store.ReadRecord(addr)
}

func (w *World) Feature(addr storage.EntryAddress) (*geojson.Feature, error) {
	data, err := w.store.ReadRecord(addr)
	if err != nil {
		return nil, err
	}
	feature, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: %v", ErrInvalidFeature, addr, err)
	}
	return feature, nil
}

func (w *World) Entries(name string) ([]storage.EntryAddress, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	c, ok := w.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return append([]storage.EntryAddress(nil), c.entries...), nil
}

// Features reads back a whole collection, limited to at most limit features
// starting at offset. A limit of 0 means all of them.
func (w *World) Features(name string, offset, limit int) (*geojson.FeatureCollection, error) {
	entries, err := w.Entries(name)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > len(entries) {
		offset = len(entries)
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	fc := geojson.NewFeatureCollection()
	for _, addr := range entries {
		feature, readErr := w.Feature(addr)
		if readErr != nil {
			return nil, readErr
		}
		fc.Append(feature)
	}
	return fc, nil
}

// Save writes a new catalog record, points the store root at it and syncs.
// Earlier catalog records stay in the store unreferenced.
func (w *World) Save() (storage.EntryAddress, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	cat := catalog{Version: catalogVersion, Collections: make([]catalogCollection, 0, len(w.collections))}
	names := make([]string, 0, len(w.collections))
	for name := range w.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := w.collections[name]
		cat.Collections = append(cat.Collections, catalogCollection{Meta: c.meta, Entries: c.entries})
	}
	data, err := json.Marshal(cat)
	if err != nil {
		return storage.EntryAddress{}, err
	}
	addr, err := w.store.WriteRecord(data)
	if err != nil {
		return storage.EntryAddress{}, fmt.Errorf("could not write catalog: %w", err)
	}
	w.store.SetRoot(addr)
	if err = w.store.Sync(); err != nil {
		return storage.EntryAddress{}, err
	}
	w.dirty = false
	logger.Info("world saved", "root", addr, "collections", len(names), "bytes", len(data))
	return addr, nil
}

// Dirty reports whether anything changed since the last Save or Load.
func (w *World) Dirty() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.dirty
}

// Import reads a GeoJSON FeatureCollection into the collection described by
// meta, creating it when missing, and returns the number of features stored.
// Every feature is stamped with the schema type name.
func (w *World) Import(meta CollectionMeta, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	if existing, ok := w.Lookup(meta.Name); ok {
		meta = existing
	} else if err = w.CreateCollection(meta); err != nil && !errors.Is(err, ErrCollectionExists) {
		return 0, err
	}

	// nothing is stored unless every feature passes the schema
	for idx, feature := range fc.Features {
		if feature == nil {
			return 0, fmt.Errorf("feature %d of %s: %w: null feature", idx, meta.Name, ErrInvalidFeature)
		}
		if feature.Properties == nil {
			feature.Properties = geojson.Properties{}
		}
		feature.Properties[TypeProperty] = meta.Schema.TypeName
		if err = checkFeature(meta.Schema, feature); err != nil {
			return 0, fmt.Errorf("feature %d of %s: %w", idx, meta.Name, err)
		}
	}
	for idx, feature := range fc.Features {
		if _, err = w.Insert(meta.Name, feature); err != nil {
			return idx, fmt.Errorf("feature %d of %s: %w", idx, meta.Name, err)
		}
	}
	logger.Info("collection imported", "name", meta.Name, "features", len(fc.Features))
	return len(fc.Features), nil
}
