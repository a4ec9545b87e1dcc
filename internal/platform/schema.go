package platform

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// introspectionQuery is the standard GraphQL introspection query, minus the
// directive machinery this client never inspects.
const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      kind
      name
      description
      fields(includeDeprecated: true) {
        name
        description
        args { ...InputValue }
        type { ...TypeRef }
      }
      inputFields { ...InputValue }
      interfaces { ...TypeRef }
      enumValues(includeDeprecated: true) { name description }
      possibleTypes { ...TypeRef }
    }
  }
}
fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
}
fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType { kind name }
            }
          }
        }
      }
    }
  }
}`

// TypeRef is a possibly-wrapped reference to a named type.
type TypeRef struct {
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	OfType *TypeRef `json:"ofType"`
}

// Unwrap returns the named type inside any NON_NULL/LIST wrappers.
func (r *TypeRef) Unwrap() string {
	for r != nil {
		if r.Name != "" {
			return r.Name
		}
		r = r.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. "[Account!]!".
func (r *TypeRef) String() string {
	if r == nil {
		return ""
	}
	switch r.Kind {
	case "NON_NULL":
		return r.OfType.String() + "!"
	case "LIST":
		return "[" + r.OfType.String() + "]"
	default:
		return r.Name
	}
}

// InputValueDef describes a field argument or input object field.
type InputValueDef struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        *TypeRef `json:"type"`
	Default     *string  `json:"defaultValue"`
}

// FieldDef describes one output field of an object or interface type.
type FieldDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Args        []InputValueDef `json:"args"`
	Type        *TypeRef        `json:"type"`
}

// EnumValueDef describes one value of an enum type.
type EnumValueDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TypeDef is the introspected definition of one named type.
type TypeDef struct {
	Kind          string          `json:"kind"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Fields        []FieldDef      `json:"fields"`
	InputFields   []InputValueDef `json:"inputFields"`
	Interfaces    []*TypeRef      `json:"interfaces"`
	EnumValues    []EnumValueDef  `json:"enumValues"`
	PossibleTypes []*TypeRef      `json:"possibleTypes"`
}

// Field returns the named field of an object or interface type.
func (t *TypeDef) Field(name string) (*FieldDef, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Snapshot is an immutable per-deployment index of the remote schema. All
// lookups are pure map/slice reads; a Snapshot is safe for concurrent use.
type Snapshot struct {
	QueryType    string
	MutationType string
	Types        map[string]*TypeDef
}

// ConnectionInfo describes a relay-style connection field.
type ConnectionInfo struct {
	FieldName  string
	ParentType string
	TypeName   string
	NodeType   string
	Args       []InputValueDef

	// Optional connection surface, selected only when exposed.
	HasProblems    bool
	HasTotal       bool
	HasHasNextPage bool
	HasEndCursor   bool
}

// Arg returns the declared argument with the given name, if any.
func (c *ConnectionInfo) Arg(name string) (*InputValueDef, bool) {
	for i := range c.Args {
		if c.Args[i].Name == name {
			return &c.Args[i], true
		}
	}
	return nil, false
}

// Type returns the named type definition.
func (s *Snapshot) Type(name string) (*TypeDef, bool) {
	t, ok := s.Types[name]
	return t, ok
}

// TypeNames returns all type names, sorted, optionally filtered by a regular
// expression matched anywhere in the name.
func (s *Snapshot) TypeNames(match string) ([]string, error) {
	var filter *regexp.Regexp
	if match != "" {
		var err error
		if filter, err = regexp.Compile(match); err != nil {
			return nil, fmt.Errorf("invalid match expression: %w", err)
		}
	}
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		if filter == nil || filter.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Connection resolves field on parentType as a relay-style connection. The
// second return is false when the field does not exist on that type, or
// exists but is not shaped like a connection.
func (s *Snapshot) Connection(parentType, field string) (*ConnectionInfo, bool) {
	parent, ok := s.Types[parentType]
	if !ok {
		return nil, false
	}
	fieldDef, ok := parent.Field(field)
	if !ok {
		return nil, false
	}
	connType, ok := s.Types[fieldDef.Type.Unwrap()]
	if !ok || connType.Kind != "OBJECT" {
		return nil, false
	}

	edgesField, ok := connType.Field("edges")
	if !ok {
		return nil, false
	}
	edgeType, ok := s.Types[edgesField.Type.Unwrap()]
	if !ok {
		return nil, false
	}
	nodeField, ok := edgeType.Field("node")
	if !ok {
		return nil, false
	}

	info := &ConnectionInfo{
		FieldName:  field,
		ParentType: parentType,
		TypeName:   connType.Name,
		NodeType:   nodeField.Type.Unwrap(),
		Args:       fieldDef.Args,
	}
	if _, ok := connType.Field("problems"); ok {
		info.HasProblems = true
	}
	if pageInfoField, ok := connType.Field("pageInfo"); ok {
		if pageInfo, ok := s.Types[pageInfoField.Type.Unwrap()]; ok {
			_, info.HasTotal = pageInfo.Field("total")
			_, info.HasHasNextPage = pageInfo.Field("hasNextPage")
			_, info.HasEndCursor = pageInfo.Field("endCursor")
		}
	}
	return info, true
}

// ConnectionHosts returns the object types, other than the root query type,
// that expose field as a connection. Sorted for deterministic composition.
func (s *Snapshot) ConnectionHosts(field string) []string {
	var hosts []string
	for name, t := range s.Types {
		if t.Kind != "OBJECT" || name == s.QueryType || strings.HasPrefix(name, "__") {
			continue
		}
		if _, ok := s.Connection(name, field); ok {
			hosts = append(hosts, name)
		}
	}
	sort.Strings(hosts)
	return hosts
}

// Cache memoizes schema snapshots per endpoint identity. Population is
// first-writer-wins: a rare duplicate introspection round trip is harmless.
// Failed introspection is never cached.
type Cache struct {
	mu    sync.Mutex
	snaps map[string]*Snapshot
}

// NewCache creates an empty schema cache.
func NewCache() *Cache {
	return &Cache{snaps: make(map[string]*Snapshot)}
}

// Get returns the snapshot for the executor's endpoint, introspecting the
// remote schema on first use. The lock is not held across the network call.
func (c *Cache) Get(ctx context.Context, ex Executor, identity string) (*Snapshot, error) {
	c.mu.Lock()
	if snap, ok := c.snaps[identity]; ok {
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	snap, err := Introspect(ctx, ex)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.snaps[identity]; ok {
		return existing, nil
	}
	c.snaps[identity] = snap
	return snap, nil
}

// Clear drops all cached snapshots.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = make(map[string]*Snapshot)
}

// Introspect fetches and indexes the remote schema.
func Introspect(ctx context.Context, ex Executor) (*Snapshot, error) {
	result, err := ex.Execute(ctx, introspectionQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("schema introspection: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("schema introspection errors: %v", result.Errors)
	}

	raw, ok := result.Data["__schema"]
	if !ok {
		return nil, fmt.Errorf("schema introspection returned no schema data")
	}
	return buildSnapshot(raw)
}

func buildSnapshot(raw any) (*Snapshot, error) {
	// Round-trip through JSON to reuse the struct tags on the type definitions.
	var payload struct {
		QueryType    *struct{ Name string } `json:"queryType"`
		MutationType *struct{ Name string } `json:"mutationType"`
		Types        []*TypeDef             `json:"types"`
	}
	if err := remarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse introspection payload: %w", err)
	}

	snap := &Snapshot{Types: make(map[string]*TypeDef, len(payload.Types))}
	if payload.QueryType != nil {
		snap.QueryType = payload.QueryType.Name
	}
	if payload.MutationType != nil {
		snap.MutationType = payload.MutationType.Name
	}
	for _, t := range payload.Types {
		if t != nil && t.Name != "" {
			snap.Types[t.Name] = t
		}
	}
	if snap.QueryType == "" {
		return nil, fmt.Errorf("introspection payload has no query type")
	}
	return snap, nil
}
