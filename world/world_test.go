package world

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/timson/worlddb/storage"
)

func aiotMeta() CollectionMeta {
	return CollectionMeta{
		Name: "aiots",
		Schema: Schema{
			TypeName:  "AIOT",
			Mandatory: []string{"codeAiot", "nom"},
		},
		Indexes: []IndexMeta{
			{Name: "by_code", Fields: []string{"codeAiot"}, Kind: IndexBTree},
			{Name: "by_location", Fields: []string{"geometry"}, Kind: IndexQuadtree},
		},
	}
}

func aiotFeature(code string, lon, lat float64) *geojson.Feature {
	feature := geojson.NewFeature(orb.Point{lon, lat})
	feature.Properties["codeAiot"] = code
	feature.Properties["nom"] = "Installation " + code
	return feature
}

func newMemWorld(t *testing.T) (*World, *storage.DB) {
	db, err := storage.OpenMem(storage.DefaultOptions().WithPageSize(1024))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func TestCollectionMetaValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *CollectionMeta)
		wantErr bool
	}{
		{name: "valid", mutate: func(m *CollectionMeta) {}},
		{name: "no name", mutate: func(m *CollectionMeta) { m.Name = "" }, wantErr: true},
		{name: "slash in name", mutate: func(m *CollectionMeta) { m.Name = "a/b" }, wantErr: true},
		{name: "no type name", mutate: func(m *CollectionMeta) { m.Schema.TypeName = "" }, wantErr: true},
		{name: "empty mandatory field", mutate: func(m *CollectionMeta) { m.Schema.Mandatory = []string{""} }, wantErr: true},
		{name: "unknown index kind", mutate: func(m *CollectionMeta) { m.Indexes[0].Kind = "Hash" }, wantErr: true},
		{name: "index without fields", mutate: func(m *CollectionMeta) { m.Indexes[1].Fields = nil }, wantErr: true},
		{name: "no indexes", mutate: func(m *CollectionMeta) { m.Indexes = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := aiotMeta()
			tt.mutate(&meta)
			err := meta.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCollectionMetaJSON(t *testing.T) {
	data, err := json.Marshal(aiotMeta())
	require.NoError(t, err)
	require.Contains(t, string(data), `"typeName":"AIOT"`)
	require.Contains(t, string(data), `"type":"Quadtree"`)

	var decoded CollectionMeta
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(aiotMeta(), decoded); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}

	var legacy CollectionMeta
	require.NoError(t, json.Unmarshal([]byte(`{"name":"rejets","type":"OuvrageRejets"}`), &legacy))
	require.Equal(t, "rejets", legacy.Name)
	require.Equal(t, "OuvrageRejets", legacy.Schema.TypeName)
	require.NoError(t, legacy.Validate())
}

func TestWorldCreateCollection(t *testing.T) {
	w, _ := newMemWorld(t)
	require.NoError(t, w.CreateCollection(aiotMeta()))
	require.ErrorIs(t, w.CreateCollection(aiotMeta()), ErrCollectionExists)

	meta, ok := w.Lookup("aiots")
	require.True(t, ok)
	require.Equal(t, "AIOT", meta.Schema.TypeName)
	_, ok = w.Lookup("missing")
	require.False(t, ok)

	require.Equal(t, []string{"aiots"}, w.Names())
	require.Len(t, w.Collections(), 1)
	require.True(t, w.Dirty())
}

func TestWorldInsert(t *testing.T) {
	w, _ := newMemWorld(t)
	require.NoError(t, w.CreateCollection(aiotMeta()))

	addr, err := w.Insert("aiots", aiotFeature("0001", 2.44, 48.79))
	require.NoError(t, err)

	feature, err := w.Feature(addr)
	require.NoError(t, err)
	require.Equal(t, "AIOT", feature.Properties.MustString(TypeProperty))
	require.Equal(t, "0001", feature.Properties.MustString("codeAiot"))
	require.Equal(t, orb.Point{2.44, 48.79}, feature.Geometry)

	payload, err := w.Payload(addr)
	require.NoError(t, err)
	require.True(t, json.Valid(payload))

	missing := aiotFeature("0002", 0, 0)
	delete(missing.Properties, "nom")
	_, err = w.Insert("aiots", missing)
	require.ErrorIs(t, err, ErrMissingProperty)

	wrongType := aiotFeature("0003", 0, 0)
	wrongType.Properties[TypeProperty] = "OuvrageRejets"
	_, err = w.Insert("aiots", wrongType)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = w.Insert("nope", aiotFeature("0004", 0, 0))
	require.ErrorIs(t, err, ErrUnknownCollection)

	_, err = w.Insert("aiots", nil)
	require.ErrorIs(t, err, ErrInvalidFeature)

	// null geometry is valid GeoJSON
	noGeometry, err := w.Insert("aiots", &geojson.Feature{Type: "Feature", Properties: geojson.Properties{"codeAiot": "x", "nom": "y"}})
	require.NoError(t, err)
	stored, err := w.Feature(noGeometry)
	require.NoError(t, err)
	require.Nil(t, stored.Geometry)
	require.Equal(t, "x", stored.Properties.MustString("codeAiot"))

	count, err := w.Count("aiots")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestWorldLargeFeatureOverflows(t *testing.T) {
	w, _ := newMemWorld(t)
	require.NoError(t, w.CreateCollection(CollectionMeta{Name: "lines", Schema: Schema{TypeName: "Line"}}))

	line := make(orb.LineString, 0, 500)
	for i := 0; i < 500; i++ {
		line = append(line, orb.Point{float64(i) / 7, float64(i) / 3})
	}
	addr, err := w.Insert("lines", geojson.NewFeature(line))
	require.NoError(t, err)

	feature, err := w.Feature(addr)
	require.NoError(t, err)
	require.Equal(t, line, feature.Geometry)
}

func TestWorldSaveLoad(t *testing.T) {
	filename := filepath.Join(os.TempDir(), uuid.New().String()+".db")
	defer func() { _ = os.Remove(filename) }()
	opts := storage.DefaultOptions().WithPageSize(2048)

	db, err := storage.Open(filename, opts)
	require.NoError(t, err)
	w := New(db)
	require.NoError(t, w.CreateCollection(aiotMeta()))
	require.NoError(t, w.CreateCollection(CollectionMeta{Name: "empty", Schema: Schema{TypeName: "Nothing"}}))
	var addrs []storage.EntryAddress
	for i := 0; i < 40; i++ {
		addr, insertErr := w.Insert("aiots", aiotFeature(fmt.Sprintf("%04d", i), float64(i), float64(-i)))
		require.NoError(t, insertErr)
		addrs = append(addrs, addr)
	}
	root, err := w.Save()
	require.NoError(t, err)
	require.False(t, w.Dirty())
	require.Equal(t, root, db.Root())
	require.NoError(t, db.Close())

	db, err = storage.Open(filename, opts)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	loaded, err := Load(db)
	require.NoError(t, err)

	if diff := cmp.Diff(w.Collections(), loaded.Collections()); diff != "" {
		t.Errorf("collections mismatch (-want +got):\n%s", diff)
	}
	entries, err := loaded.Entries("aiots")
	require.NoError(t, err)
	require.Equal(t, addrs, entries)

	fc, err := loaded.Features("aiots", 10, 5)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)
	require.Equal(t, "0010", fc.Features[0].Properties.MustString("codeAiot"))

	require.Equal(t, map[string]int{"aiots": 40, "empty": 0}, loaded.Stats())
}

func TestLoadEmptyAndCorrupt(t *testing.T) {
	_, db := newMemWorld(t)
	loaded, err := Load(db)
	require.NoError(t, err)
	require.Empty(t, loaded.Names())

	addr, err := db.WriteRecord([]byte("not json"))
	require.NoError(t, err)
	db.SetRoot(addr)
	_, err = Load(db)
	require.ErrorIs(t, err, ErrBadCatalog)

	addr, err = db.WriteRecord([]byte(`{"version":99,"collections":[]}`))
	require.NoError(t, err)
	db.SetRoot(addr)
	_, err = Load(db)
	require.ErrorIs(t, err, ErrBadCatalog)
}

const rejetsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [2.41, 48.77]}, "properties": {"code": "R1"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [2.52, 48.80]}, "properties": {"code": "R2", "type": "Other"}}
  ]
}`

func TestWorldImport(t *testing.T) {
	w, _ := newMemWorld(t)
	meta := CollectionMeta{Name: "rejets", Schema: Schema{TypeName: "OuvrageRejets", Mandatory: []string{"code"}}}

	count, err := w.Import(meta, strings.NewReader(rejetsGeoJSON))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	fc, err := w.Features("rejets", 0, 0)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	for _, feature := range fc.Features {
		require.Equal(t, "OuvrageRejets", feature.Properties.MustString(TypeProperty))
	}

	// importing again appends to the existing collection
	count, err = w.Import(meta, strings.NewReader(rejetsGeoJSON))
	require.NoError(t, err)
	require.Equal(t, 2, count)
	total, err := w.Count("rejets")
	require.NoError(t, err)
	require.Equal(t, 4, total)

	_, err = w.Import(meta, strings.NewReader(`{"type": "Feature"`))
	require.ErrorIs(t, err, ErrInvalidFeature)
}

func TestWorldImportChecksAllFeaturesFirst(t *testing.T) {
	w, _ := newMemWorld(t)
	meta := CollectionMeta{Name: "rejets", Schema: Schema{TypeName: "OuvrageRejets", Mandatory: []string{"code"}}}

	broken := `{"type": "FeatureCollection", "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [2.41, 48.77]}, "properties": {"code": "R1"}},
    {"type": "Feature", "geometry": null, "properties": {"code": "R2"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [2.52, 48.80]}, "properties": {}}
  ]}`
	count, err := w.Import(meta, strings.NewReader(broken))
	require.ErrorIs(t, err, ErrMissingProperty)
	require.Zero(t, count)
	total, err := w.Count("rejets")
	require.NoError(t, err)
	require.Zero(t, total)

	withNull := `{"type": "FeatureCollection", "features": [
    {"type": "Feature", "geometry": null, "properties": {"code": "R2"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [2.41, 48.77]}, "properties": {"code": "R1"}}
  ]}`
	count, err = w.Import(meta, strings.NewReader(withNull))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	fc, err := w.Features("rejets", 0, 0)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	require.Nil(t, fc.Features[0].Geometry)
	require.Equal(t, orb.Point{2.41, 48.77}, fc.Features[1].Geometry)
}

func buildArchive(t *testing.T, members map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestWorldImportArchive(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"META": `{"collections":[
			{"name":"rejets","type":"OuvrageRejets"},
			{"name":"aiots","schema":{"typeName":"AIOT"},"indexes":[]},
			{"name":"lost","type":"Lost"}
		]}`,
		"feature_collections/rejets": rejetsGeoJSON,
		"feature_collections/aiots":  `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`,
	})

	w, _ := newMemWorld(t)
	count, err := w.ImportArchive(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, []string{"aiots", "rejets"}, w.Names())

	filename := filepath.Join(os.TempDir(), uuid.New().String()+".world")
	defer func() { _ = os.Remove(filename) }()
	require.NoError(t, os.WriteFile(filename, archive, 0600))
	other, _ := newMemWorld(t)
	count, err = other.ImportArchiveFile(filename)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestWorldImportArchiveInvalid(t *testing.T) {
	w, _ := newMemWorld(t)

	_, err := w.ImportArchive(bytes.NewReader([]byte("nope")), 4)
	require.ErrorIs(t, err, ErrBadArchive)

	noMeta := buildArchive(t, map[string]string{"feature_collections/a": "{}"})
	_, err = w.ImportArchive(bytes.NewReader(noMeta), int64(len(noMeta)))
	require.ErrorIs(t, err, ErrBadArchive)

	badMeta := buildArchive(t, map[string]string{"META": "[1,2"})
	_, err = w.ImportArchive(bytes.NewReader(badMeta), int64(len(badMeta)))
	require.ErrorIs(t, err, ErrBadArchive)
}
