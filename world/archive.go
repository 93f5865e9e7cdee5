package world

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// Legacy world archive layout: a zip holding a META member with the world
// metadata and one GeoJSON FeatureCollection per collection.
const (
	archiveMetaName       = "META"
	archiveCollectionsDir = "feature_collections"
)

type archiveMeta struct {
	Collections []CollectionMeta `json:"collections"`
}

// ImportArchive copies every collection of a legacy world archive into the
// world and returns the number of features stored. Collections whose member
// is missing are skipped.
func (w *World) ImportArchive(r io.ReaderAt, size int64) (int, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	return w.importZip(zr)
}

// ImportArchiveFile is ImportArchive over a file on disk.
func (w *World) ImportArchiveFile(filename string) (int, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer func() { _ = zr.Close() }()
	return w.importZip(&zr.Reader)
}

func (w *World) importZip(zr *zip.Reader) (int, error) {
	metaFile, err := zr.Open(archiveMetaName)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	var meta archiveMeta
	err = json.NewDecoder(metaFile).Decode(&meta)
	_ = metaFile.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: META: %v", ErrBadArchive, err)
	}

	total := 0
	for _, collectionMeta := range meta.Collections {
		member := path.Join(archiveCollectionsDir, collectionMeta.Name)
		file, openErr := zr.Open(member)
		if errors.Is(openErr, fs.ErrNotExist) {
			logger.Warn("archive misses collection data", "collection", collectionMeta.Name)
			continue
		}
		if openErr != nil {
			return total, fmt.Errorf("%w: %v", ErrBadArchive, openErr)
		}
		count, importErr := w.Import(collectionMeta, file)
		_ = file.Close()
		total += count
		if importErr != nil {
			return total, importErr
		}
	}
	logger.Info("world archive imported", "collections", len(meta.Collections), "features", total)
	return total, nil
}
