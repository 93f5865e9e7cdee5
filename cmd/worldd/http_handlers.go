package main

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/OneOfOne/xxhash"
	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/paulmach/orb/geojson"

	"github.com/timson/worlddb/storage"
	"github.com/timson/worlddb/world"
)

const maxBodySize = 64 << 20

type HealthResponse struct {
	Status string `json:"status"`
}

type CollectionResponse struct {
	Meta     world.CollectionMeta `json:"meta"`
	Features int                  `json:"features"`
	Status   string               `json:"status,omitempty"`
	Warning  string               `json:"warning,omitempty"`
}

type WriteResponse struct {
	Address storage.EntryAddress `json:"address"`
	Status  string               `json:"status"`
	Warning string               `json:"warning,omitempty"`
}

const (
	statusSaved   = "ok"
	statusUnsaved = "unsaved"
)

// saveWorld persists the catalog after a change already applied in memory.
// A failed save keeps the change and the world stays dirty, so the next
// successful save or the shutdown save writes it out.
func (srv *Server) saveWorld() (string, string) {
	if _, err := srv.World.Save(); err != nil {
		srv.Logger.Error("could not save catalog, change kept in memory", "err", err)
		return statusUnsaved, err.Error()
	}
	return statusSaved, ""
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "ok"})
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, srv.DB.Stat())
}

func (srv *Server) collectionResponse(name string) (*CollectionResponse, error) {
	meta, ok := srv.World.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", world.ErrUnknownCollection, name)
	}
	count, err := srv.World.Count(name)
	if err != nil {
		return nil, err
	}
	return &CollectionResponse{Meta: meta, Features: count}, nil
}

func (srv *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names := srv.World.Names()
	collections := make([]*CollectionResponse, 0, len(names))
	for _, name := range names {
		collection, err := srv.collectionResponse(name)
		if err != nil {
			_ = render.Render(w, r, errorRenderer(err))
			return
		}
		collections = append(collections, collection)
	}
	render.JSON(w, r, collections)
}

func (srv *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	collection, err := srv.collectionResponse(chi.URLParam(r, "name"))
	if err != nil {
		_ = render.Render(w, r, errorRenderer(err))
		return
	}
	render.JSON(w, r, collection)
}

func (srv *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var meta world.CollectionMeta
	if err := render.DecodeJSON(io.LimitReader(r.Body, maxBodySize), &meta); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := meta.Validate(); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := srv.World.CreateCollection(meta); err != nil {
		_ = render.Render(w, r, errorRenderer(err))
		return
	}
	status, warning := srv.saveWorld()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, &CollectionResponse{Meta: meta, Status: status, Warning: warning})
}

func (srv *Server) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	fc, err := srv.World.Features(chi.URLParam(r, "name"), offset, limit)
	if err != nil {
		_ = render.Render(w, r, errorRenderer(err))
		return
	}
	render.JSON(w, r, fc)
}

func (srv *Server) handleInsertFeature(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		_ = render.Render(w, r, ErrRequestTimeout())
		return
	default:
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	feature, err := geojson.UnmarshalFeature(body)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	addr, err := srv.World.Insert(chi.URLParam(r, "name"), feature)
	if err != nil {
		_ = render.Render(w, r, errorRenderer(err))
		return
	}
	status, warning := srv.saveWorld()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, &WriteResponse{Address: addr, Status: status, Warning: warning})
}

func (srv *Server) handleWriteRecord(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		_ = render.Render(w, r, ErrRequestTimeout())
		return
	default:
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	addr, err := srv.DB.WriteRecord(body)
	if err != nil {
		_ = render.Render(w, r, errorRenderer(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, &WriteResponse{Address: addr, Status: statusSaved})
}

// handleReadRecord returns the raw record bytes with an xxhash ETag.
func (srv *Server) handleReadRecord(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "page"), chi.URLParam(r, "slot"))
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	payload, err := srv.DB.ReadRecord(addr)
	if err != nil {
		_ = render.Render(w, r, errorRenderer(err))
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(payload))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

func parseAddress(page, slot string) (storage.EntryAddress, error) {
	pageID, err := strconv.ParseUint(page, 10, 64)
	if err != nil {
		return storage.EntryAddress{}, fmt.Errorf("invalid page id %q", page)
	}
	slotID, err := strconv.ParseUint(slot, 10, 16)
	if err != nil {
		return storage.EntryAddress{}, fmt.Errorf("invalid slot id %q", slot)
	}
	return storage.EntryAddress{PageID: storage.PageID(pageID), SlotID: uint16(slotID)}, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}
