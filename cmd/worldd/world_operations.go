package main

import (
	"fmt"
	"os"

	"github.com/timson/worlddb/storage"
	"github.com/timson/worlddb/world"
)

func openWorld(cfg *Config) (*storage.DB, *world.World, error) {
	db, err := storage.Open(cfg.DB.Filename, cfg.StorageOptions())
	if err != nil {
		return nil, nil, err
	}
	w, err := world.Load(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, w, nil
}

// ImportArchive copies a legacy world archive into the store and saves the catalog.
func ImportArchive(w *world.World, filename string) (int, error) {
	count, err := w.ImportArchiveFile(filename)
	if err != nil {
		return count, err
	}
	if _, err = w.Save(); err != nil {
		return count, err
	}
	return count, nil
}

// AddCollection imports one GeoJSON FeatureCollection file as a collection of
// the given feature type.
func AddCollection(w *world.World, filename string, name string, typeName string) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = file.Close()
	}()
	meta := world.CollectionMeta{Name: name, Schema: world.Schema{TypeName: typeName}}
	count, err := w.Import(meta, file)
	if err != nil {
		return count, err
	}
	if _, err = w.Save(); err != nil {
		return count, err
	}
	return count, nil
}

func PrintCollections(w *world.World) {
	stats := w.Stats()
	for _, name := range w.Names() {
		meta, _ := w.Lookup(name)
		fmt.Printf("%s %s | %s %s | %s %s\n",
			grayColor.Sprint("Collection:"), pastelColor.Sprint(name),
			grayColor.Sprint("Type:"), pastelColor.Sprint(meta.Schema.TypeName),
			grayColor.Sprint("Features:"), lightGreen.Sprint(stats[name]))
	}
}
