package export

import (
	"github.com/stacklet/mcp-server/internal/platform"
)

// Schema fixture shared by the export tests: a trimmed governance schema with
// a root accounts connection, a node-hosted resources connection, and the
// optional connection surface (pageInfo, problems) fully present.

func named(kind, name string) *platform.TypeRef {
	return &platform.TypeRef{Kind: kind, Name: name}
}

func nonNull(r *platform.TypeRef) *platform.TypeRef {
	return &platform.TypeRef{Kind: "NON_NULL", OfType: r}
}

func list(r *platform.TypeRef) *platform.TypeRef {
	return &platform.TypeRef{Kind: "LIST", OfType: r}
}

func arg(name string, t *platform.TypeRef) platform.InputValueDef {
	return platform.InputValueDef{Name: name, Type: t}
}

func field(name string, t *platform.TypeRef, args ...platform.InputValueDef) platform.FieldDef {
	return platform.FieldDef{Name: name, Type: t, Args: args}
}

func obj(name string, fields ...platform.FieldDef) *platform.TypeDef {
	return &platform.TypeDef{Kind: "OBJECT", Name: name, Fields: fields}
}

func connectionArgs() []platform.InputValueDef {
	return []platform.InputValueDef{
		arg("first", named("SCALAR", "Int")),
		arg("after", named("SCALAR", "String")),
		arg("filterElement", named("INPUT_OBJECT", "FilterElementInput")),
	}
}

func testSnapshot() *platform.Snapshot {
	types := []*platform.TypeDef{
		obj("Query",
			field("accounts", named("OBJECT", "AccountConnection"),
				append(connectionArgs(), arg("provider", named("ENUM", "CloudProvider")))...),
			field("node", named("INTERFACE", "Node"), arg("id", nonNull(named("SCALAR", "ID")))),
		),
		obj("AccountConnection",
			field("edges", list(named("OBJECT", "AccountEdge"))),
			field("pageInfo", nonNull(named("OBJECT", "PageInfo"))),
			field("problems", list(named("OBJECT", "Problem"))),
		),
		obj("AccountEdge", field("node", named("OBJECT", "Account"))),
		obj("Account",
			field("id", nonNull(named("SCALAR", "ID"))),
			field("name", named("SCALAR", "String")),
			field("metadata", named("SCALAR", "String")),
			field("group", named("OBJECT", "AccountGroup")),
			field("resources", named("OBJECT", "ResourceConnection"), connectionArgs()...),
		),
		obj("AccountGroup",
			field("id", nonNull(named("SCALAR", "ID"))),
			field("name", named("SCALAR", "String")),
		),
		obj("ResourceConnection",
			field("edges", list(named("OBJECT", "ResourceEdge"))),
			field("pageInfo", nonNull(named("OBJECT", "PageInfo"))),
			field("problems", list(named("OBJECT", "Problem"))),
		),
		obj("ResourceEdge", field("node", named("OBJECT", "Resource"))),
		obj("Resource",
			field("id", nonNull(named("SCALAR", "ID"))),
			field("resourceType", named("SCALAR", "String")),
		),
		obj("PageInfo",
			field("total", named("SCALAR", "Int")),
			field("hasNextPage", nonNull(named("SCALAR", "Boolean"))),
			field("endCursor", named("SCALAR", "String")),
		),
		obj("Problem", field("message", nonNull(named("SCALAR", "String")))),
		{Kind: "SCALAR", Name: "String"},
		{Kind: "SCALAR", Name: "Int"},
		{Kind: "SCALAR", Name: "Boolean"},
		{Kind: "SCALAR", Name: "ID"},
		{Kind: "ENUM", Name: "CloudProvider", EnumValues: []platform.EnumValueDef{{Name: "AWS"}, {Name: "Azure"}}},
		{Kind: "INPUT_OBJECT", Name: "FilterElementInput"},
		{Kind: "INTERFACE", Name: "Node", Fields: []platform.FieldDef{field("id", nonNull(named("SCALAR", "ID")))}},
	}

	snap := &platform.Snapshot{
		QueryType: "Query",
		Types:     make(map[string]*platform.TypeDef, len(types)),
	}
	for _, t := range types {
		snap.Types[t.Name] = t
	}
	return snap
}
