package world

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// TypeProperty is the feature property carrying the schema type name.
const TypeProperty = "type"

var validate = validator.New(validator.WithRequiredStructEnabled())

type Schema struct {
	TypeName  string   `json:"typeName" validate:"required"`
	Mandatory []string `json:"mandatory,omitempty" validate:"dive,required"`
}

type IndexKind string

const (
	IndexBTree    IndexKind = "BTree"
	IndexQuadtree IndexKind = "Quadtree"
)

// IndexMeta describes a secondary index. It is carried as metadata only;
// nothing builds or queries the index yet.
type IndexMeta struct {
	Name   string    `json:"name" validate:"required"`
	Fields []string  `json:"fields" validate:"required,min=1,dive,required"`
	Kind   IndexKind `json:"type" validate:"oneof=BTree Quadtree"`
}

type CollectionMeta struct {
	Name    string      `json:"name" validate:"required,max=128,excludesall=/"`
	Schema  Schema      `json:"schema"`
	Indexes []IndexMeta `json:"indexes" validate:"dive"`
}

// UnmarshalJSON also accepts the legacy {"name", "type"} form written by
// older world archives.
func (m *CollectionMeta) UnmarshalJSON(data []byte) error {
	type plain CollectionMeta
	var raw struct {
		plain
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = CollectionMeta(raw.plain)
	if m.Schema.TypeName == "" {
		m.Schema.TypeName = raw.Type
	}
	return nil
}

func (m *CollectionMeta) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("collection %q: %w", m.Name, err)
	}
	return nil
}

// Registry answers metadata lookups for the storage consumers.
type Registry interface {
	Lookup(name string) (CollectionMeta, bool)
	Collections() map[string]CollectionMeta
}
