package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stacklet/mcp-server/internal/platform"
)

// Composed is a paginated GraphQL query ready for the pagination driver. The
// query text is deterministic for identical inputs; only the $cursor variable
// changes between pages.
type Composed struct {
	Query      string
	Variables  map[string]any
	NodeRooted bool
	Field      string

	// UsesCursor is false when no targeted connection declares an "after"
	// argument, in which case only one page can ever be fetched.
	UsesCursor bool
}

// WithCursor returns the variables for one page fetch.
func (c *Composed) WithCursor(cursor *string) map[string]any {
	vars := make(map[string]any, len(c.Variables)+1)
	for k, v := range c.Variables {
		vars[k] = v
	}
	if c.UsesCursor {
		if cursor != nil {
			vars["cursor"] = *cursor
		} else {
			vars["cursor"] = nil
		}
	}
	return vars
}

// Compose builds the paginated query for a request against a schema snapshot.
// All schema-dependent validation happens here, before any data round trip.
func Compose(snap *platform.Snapshot, req *Request) (*Composed, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	if req.NodeID == "" {
		info, ok := snap.Connection(snap.QueryType, req.ConnectionField)
		if !ok {
			return nil, errorf(CodeFieldNotFound,
				"connection field %q not found on %s", req.ConnectionField, snap.QueryType)
		}
		return composeQuery(snap, req, pageSize, []*platform.ConnectionInfo{info}, false)
	}

	queryType, ok := snap.Type(snap.QueryType)
	if !ok {
		return nil, errorf(CodeFieldNotFound, "schema has no %s type", snap.QueryType)
	}
	if _, ok := queryType.Field("node"); !ok {
		return nil, errorf(CodeFieldNotFound, "schema does not support node lookup")
	}
	hosts := snap.ConnectionHosts(req.ConnectionField)
	if len(hosts) == 0 {
		return nil, errorf(CodeFieldNotFound,
			"no node type exposes connection field %q", req.ConnectionField)
	}
	infos := make([]*platform.ConnectionInfo, 0, len(hosts))
	for _, host := range hosts {
		info, _ := snap.Connection(host, req.ConnectionField)
		infos = append(infos, info)
	}
	return composeQuery(snap, req, pageSize, infos, true)
}

func composeQuery(snap *platform.Snapshot, req *Request, pageSize int, infos []*platform.ConnectionInfo, nodeRooted bool) (*Composed, error) {
	composed := &Composed{
		Variables:  make(map[string]any),
		NodeRooted: nodeRooted,
		Field:      req.ConnectionField,
	}

	// Every targeted type must declare every requested argument; anything
	// else would fail upstream anyway, so fail before the round trip.
	for _, info := range infos {
		for _, p := range req.Params {
			if _, ok := info.Arg(p.Name); !ok {
				return nil, errorf(CodeFieldNotFound,
					"argument %q not accepted by %s.%s", p.Name, info.ParentType, info.FieldName)
			}
		}
		if req.Filter != nil {
			if _, ok := info.Arg("filterElement"); !ok {
				return nil, errorf(CodeFieldNotFound,
					"%s.%s does not accept a filterElement argument", info.ParentType, info.FieldName)
			}
		}
		if _, ok := info.Arg("after"); ok {
			composed.UsesCursor = true
		}
	}

	// Variable declarations, in fixed order: node, cursor, filter, params.
	var decls []string
	if nodeRooted {
		decls = append(decls, "$node: ID!")
		composed.Variables["node"] = req.NodeID
	}
	if composed.UsesCursor {
		decls = append(decls, "$cursor: String")
		composed.Variables["cursor"] = nil
	}
	if req.Filter != nil {
		arg, _ := infos[0].Arg("filterElement")
		decls = append(decls, "$filter: "+arg.Type.String())
		value, err := filterValue(req.Filter)
		if err != nil {
			return nil, wrapError(CodeBadRequest, err)
		}
		composed.Variables["filter"] = value
	}
	for _, p := range req.Params {
		arg, _ := infos[0].Arg(p.Name)
		declType := p.Type
		if declType == "" {
			declType = arg.Type.String()
		}
		decls = append(decls, fmt.Sprintf("$p_%s: %s", p.Name, declType))
		composed.Variables["p_"+p.Name] = p.Value
	}

	var b strings.Builder
	b.WriteString("query export(" + strings.Join(decls, ", ") + ") {\n")
	if nodeRooted {
		b.WriteString("  node(id: $node) {\n")
		for _, info := range infos {
			b.WriteString("    ... on " + info.ParentType + " {\n")
			writeConnection(&b, snap, req, pageSize, info, "      ")
			b.WriteString("    }\n")
		}
		b.WriteString("  }\n")
	} else {
		writeConnection(&b, snap, req, pageSize, infos[0], "  ")
	}
	b.WriteString("}")

	composed.Query = b.String()
	return composed, nil
}

func writeConnection(b *strings.Builder, snap *platform.Snapshot, req *Request, pageSize int, info *platform.ConnectionInfo, indent string) {
	var args []string
	if _, ok := info.Arg("first"); ok {
		args = append(args, fmt.Sprintf("first: %d", pageSize))
	}
	if _, ok := info.Arg("after"); ok {
		args = append(args, "after: $cursor")
	}
	if req.Filter != nil {
		args = append(args, "filterElement: $filter")
	}
	for _, p := range req.Params {
		args = append(args, fmt.Sprintf("%s: $p_%s", p.Name, p.Name))
	}

	b.WriteString(indent + info.FieldName)
	if len(args) > 0 {
		b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	b.WriteString(" {\n")

	var pageInfo []string
	if info.HasTotal {
		pageInfo = append(pageInfo, "total")
	}
	if info.HasHasNextPage {
		pageInfo = append(pageInfo, "hasNextPage")
	}
	if info.HasEndCursor {
		pageInfo = append(pageInfo, "endCursor")
	}
	if len(pageInfo) > 0 {
		b.WriteString(indent + "  pageInfo { " + strings.Join(pageInfo, " ") + " }\n")
	}
	if info.HasProblems {
		b.WriteString(indent + "  problems { message }\n")
	}

	b.WriteString(indent + "  edges { node ")
	writeSelection(b, nodeSelection(snap, info.NodeType, req.Columns))
	b.WriteString(" }\n")
	b.WriteString(indent + "}\n")
}

// selNode is an insertion-ordered selection tree.
type selNode struct {
	name     string
	children []*selNode
}

func (n *selNode) child(name string) *selNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &selNode{name: name}
	n.children = append(n.children, c)
	return c
}

// nodeSelection derives the node selection set from the requested columns.
// The node key is always requested; column paths are resolved against the
// schema as far as they go, and unresolvable heads are simply omitted so the
// projector degrades them to null instead of the whole query failing.
func nodeSelection(snap *platform.Snapshot, nodeType string, columns []ColumnSpec) *selNode {
	root := &selNode{}
	if t, ok := snap.Type(nodeType); ok {
		if _, ok := t.Field("id"); ok {
			root.child("id")
		}
	}

	for _, col := range columns {
		segments := strings.Split(col.Path, ".")
		cur := root
		curType := nodeType
		for _, segment := range segments {
			t, ok := snap.Type(curType)
			if !ok || len(t.Fields) == 0 {
				// Deeper than the schema goes: the value here is raw JSON
				// the projector will dig into.
				break
			}
			field, ok := t.Field(segment)
			if !ok {
				break
			}
			cur = cur.child(segment)
			curType = field.Type.Unwrap()
		}
		// A selection ending on a composite type needs some subselection to
		// be a valid query; its key is the best we can do.
		if t, ok := snap.Type(curType); ok && cur != root && len(t.Fields) > 0 && len(cur.children) == 0 {
			if _, ok := t.Field("id"); ok {
				cur.child("id")
			} else {
				cur.child("__typename")
			}
		}
	}
	if len(root.children) == 0 {
		root.child("__typename")
	}
	return root
}

func writeSelection(b *strings.Builder, n *selNode) {
	b.WriteString("{ ")
	for i, c := range n.children {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.name)
		if len(c.children) > 0 {
			b.WriteString(" ")
			writeSelection(b, c)
		}
	}
	b.WriteString(" }")
}

// filterValue converts a FilterElement to its wire representation.
func filterValue(f *FilterElement) (any, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
