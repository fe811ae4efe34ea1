// Package cache keeps query results in a normalized in-memory store and
// de-duplicates identical in-flight queries.
package cache

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/sorenmh/pushdash/internal/gql"
)

const (
	typenameField = "__typename"
	refField      = "__ref"
	defaultKey    = "id"
)

// Store maps (typename, key) to the last known fields of that object and
// root field keys to the values written for them. Objects that cannot be
// identified stay embedded in their parent.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]map[string]any
	roots     map[string]any
	keyFields map[string]string
}

// NewStore creates an empty store. keyFields names the identifying field
// per typename; types not listed are identified by "id".
func NewStore(keyFields map[string]string) *Store {
	return &Store{
		entities:  map[string]map[string]any{},
		roots:     map[string]any{},
		keyFields: maps.Clone(keyFields),
	}
}

// EntityKey composes the store key of an object
func EntityKey(typename, id string) string {
	return typename + ":" + id
}

// Identify returns the store key of obj, if it has a typename and a non-null
// identifying field
func (s *Store) Identify(obj map[string]any) (string, bool) {
	typename, _ := obj[typenameField].(string)
	if typename == "" {
		return "", false
	}
	keyField := defaultKey
	if f, ok := s.keyFields[typename]; ok {
		keyField = f
	}
	id, ok := obj[keyField]
	if !ok || id == nil {
		return "", false
	}
	return EntityKey(typename, fmt.Sprint(id)), true
}

// Write normalizes value, the result of the root field stored under rootKey,
// shaped by sel
func (s *Store) Write(rootKey string, sel []*gql.Field, vars map[string]any, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots[rootKey] = s.write(value, sel, vars)
}

func (s *Store) write(value any, sel []*gql.Field, vars map[string]any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.write(item, sel, vars)
		}
		return out
	case map[string]any:
		if len(sel) == 0 {
			return cloneValue(v)
		}
		fields := make(map[string]any, len(sel)+1)
		if tn, ok := v[typenameField]; ok {
			fields[typenameField] = tn
		}
		for _, f := range sel {
			child, ok := v[f.ResultKey()]
			if !ok {
				continue
			}
			fields[FieldKey(f, vars)] = s.write(child, f.Selections, vars)
		}
		key, ok := s.Identify(v)
		if !ok {
			return fields
		}
		if existing, ok := s.entities[key]; ok {
			maps.Copy(existing, fields)
		} else {
			s.entities[key] = fields
		}
		return map[string]any{refField: key}
	default:
		return v
	}
}

// Read rebuilds the value of rootKey shaped by sel. It reports false when
// the root or any selected field is not in the store.
func (s *Store) Read(rootKey string, sel []*gql.Field, vars map[string]any) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.roots[rootKey]
	if !ok {
		return nil, false
	}
	return s.read(stored, sel, vars)
}

func (s *Store) read(stored any, sel []*gql.Field, vars map[string]any) (any, bool) {
	switch v := stored.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			val, ok := s.read(item, sel, vars)
			if !ok {
				return nil, false
			}
			out[i] = val
		}
		return out, true
	case map[string]any:
		obj := v
		if ref, ok := v[refField].(string); ok && len(v) == 1 {
			entity, ok := s.entities[ref]
			if !ok {
				return nil, false
			}
			obj = entity
		}
		if len(sel) == 0 {
			return cloneValue(obj), true
		}
		out := make(map[string]any, len(sel)+1)
		if tn, ok := obj[typenameField]; ok {
			out[typenameField] = tn
		}
		for _, f := range sel {
			child, ok := obj[FieldKey(f, vars)]
			if !ok {
				return nil, false
			}
			val, ok := s.read(child, f.Selections, vars)
			if !ok {
				return nil, false
			}
			out[f.ResultKey()] = val
		}
		return out, true
	default:
		return v, true
	}
}

// Entity returns a copy of the stored fields of an object
func (s *Store) Entity(typename, id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[EntityKey(typename, id)]
	if !ok {
		return nil, false
	}
	return cloneValue(e).(map[string]any), true
}

// Len returns the number of normalized objects
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Reset drops everything
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = map[string]map[string]any{}
	s.roots = map[string]any{}
}

// FieldKey is the storage name of a field: its name, plus its arguments
// when it has any, so that the same field read with different arguments
// is kept apart
func FieldKey(f *gql.Field, vars map[string]any) string {
	if len(f.Arguments) == 0 {
		return f.Name
	}
	args, err := f.Args(vars)
	if err != nil {
		return f.Name
	}
	b, err := json.Marshal(args)
	if err != nil {
		return f.Name
	}
	return f.Name + "(" + string(b) + ")"
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
