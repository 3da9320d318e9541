package models

import "encoding/json"

// ContextKind tags the payload variant carried by a Context.
type ContextKind string

const (
	// ContextNone marks an empty context.
	ContextNone ContextKind = ""
	// ContextNote carries a free-text note.
	ContextNote ContextKind = "note"
	// ContextEntity references another entity in the system.
	ContextEntity ContextKind = "entity"
	// ContextWave references a wave analysis by content hash.
	ContextWave ContextKind = "wave"
	// ContextOpaque is the forward-compatible escape hatch: an opaque
	// blob the core stores and returns without interpreting.
	ContextOpaque ContextKind = "opaque"
)

// EntityRef names another record in the system by kind and id.
type EntityRef struct {
	// Kind is the entity table the reference points into (bump, atom, awi, trail).
	Kind string `json:"kind"`
	// ID is the referenced entity's id.
	ID string `json:"id"`
}

// Context is the closed tagged union attached to markers, atoms, and
// trail entries. Exactly the field matching Kind is meaningful; Opaque
// exists so callers with payloads the union does not model yet are not
// forced into free-form blobs everywhere.
type Context struct {
	Kind   ContextKind     `json:"kind,omitempty"`
	Note   string          `json:"note,omitempty"`
	Entity *EntityRef      `json:"entity,omitempty"`
	Wave   string          `json:"wave,omitempty"`
	Opaque json.RawMessage `json:"opaque,omitempty"`
}

// NoteContext builds a note-kind context.
func NoteContext(note string) Context {
	return Context{Kind: ContextNote, Note: note}
}

// EntityContext builds an entity-reference context.
func EntityContext(kind, id string) Context {
	return Context{Kind: ContextEntity, Entity: &EntityRef{Kind: kind, ID: id}}
}

// WaveContext builds a wave-reference context from a content hash.
func WaveContext(hash string) Context {
	return Context{Kind: ContextWave, Wave: hash}
}

// IsZero returns true for an empty context.
func (c Context) IsZero() bool {
	return c.Kind == ContextNone && c.Note == "" && c.Entity == nil &&
		c.Wave == "" && len(c.Opaque) == 0
}

// Valid returns true if the tagged field matches the kind.
func (c Context) Valid() bool {
	switch c.Kind {
	case ContextNone:
		return c.IsZero()
	case ContextNote:
		return c.Note != ""
	case ContextEntity:
		return c.Entity != nil && c.Entity.Kind != "" && c.Entity.ID != ""
	case ContextWave:
		return c.Wave != ""
	case ContextOpaque:
		return len(c.Opaque) > 0 && json.Valid(c.Opaque)
	default:
		return false
	}
}
