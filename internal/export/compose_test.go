package export

import (
	"strings"
	"testing"
)

func baseRequest() Request {
	return Request{
		ConnectionField: "accounts",
		Columns: []ColumnSpec{
			{Name: "id", Path: "id"},
			{Name: "name", Path: "name"},
		},
		PageSize: 5,
	}
}

func TestComposeRootConnection(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if composed.NodeRooted {
		t.Error("root connection should not be node rooted")
	}
	if !composed.UsesCursor {
		t.Error("accounts declares after, UsesCursor should be true")
	}

	for _, want := range []string{
		"query export($cursor: String)",
		"accounts(first: 5, after: $cursor)",
		"pageInfo { total hasNextPage endCursor }",
		"problems { message }",
		"edges { node { id name } }",
	} {
		if !strings.Contains(composed.Query, want) {
			t.Errorf("composed query missing %q:\n%s", want, composed.Query)
		}
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Params = []Param{{Name: "provider", Value: "AWS"}}

	first, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	second, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if first.Query != second.Query {
		t.Errorf("identical requests composed different queries:\n%s\n---\n%s", first.Query, second.Query)
	}
}

func TestComposeParamVariable(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Params = []Param{{Name: "provider", Type: "CloudProvider!", Value: "AWS"}}

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(composed.Query, "$p_provider: CloudProvider!") {
		t.Errorf("missing param declaration:\n%s", composed.Query)
	}
	if !strings.Contains(composed.Query, "provider: $p_provider") {
		t.Errorf("missing param usage:\n%s", composed.Query)
	}
	if composed.Variables["p_provider"] != "AWS" {
		t.Errorf("p_provider variable = %v", composed.Variables["p_provider"])
	}
}

func TestComposeParamTypeFromSchema(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Params = []Param{{Name: "provider", Value: "AWS"}}

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(composed.Query, "$p_provider: CloudProvider") {
		t.Errorf("declared type should come from the schema:\n%s", composed.Query)
	}
}

func TestComposeFilterVariable(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Filter = &FilterElement{
		Single: &FilterSingle{Name: "provider", Operator: "equals", Value: "AWS"},
	}

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(composed.Query, "$filter: FilterElementInput") {
		t.Errorf("filter declaration should use the schema's argument type:\n%s", composed.Query)
	}
	if !strings.Contains(composed.Query, "filterElement: $filter") {
		t.Errorf("missing filter usage:\n%s", composed.Query)
	}
	filter, ok := composed.Variables["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter variable = %T", composed.Variables["filter"])
	}
	single, _ := filter["single"].(map[string]any)
	if single["name"] != "provider" {
		t.Errorf("filter value = %v", filter)
	}
}

func TestComposeRejectsPagingParams(t *testing.T) {
	snap := testSnapshot()
	for _, name := range []string{"first", "after", "last", "before"} {
		req := baseRequest()
		req.Params = []Param{{Name: name, Value: 10}}
		if _, err := Compose(snap, &req); CodeOf(err) != CodePagingParam {
			t.Errorf("param %q: code = %q, want %q", name, CodeOf(err), CodePagingParam)
		}
	}
}

func TestComposeRejectsPagingFilterLeaf(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Filter = &FilterElement{
		Multiple: &FilterMultiple{
			Operator: "and",
			Elements: []FilterElement{
				{Single: &FilterSingle{Name: "provider", Operator: "equals", Value: "AWS"}},
				{Single: &FilterSingle{Name: "after", Operator: "equals", Value: "x"}},
			},
		},
	}
	if _, err := Compose(snap, &req); CodeOf(err) != CodePagingParam {
		t.Errorf("code = %q, want %q", CodeOf(err), CodePagingParam)
	}
}

func TestComposeUnknownField(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.ConnectionField = "nonsense"
	if _, err := Compose(snap, &req); CodeOf(err) != CodeFieldNotFound {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeFieldNotFound)
	}
}

func TestComposeUnknownParam(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Params = []Param{{Name: "region", Value: "us-east-1"}}
	if _, err := Compose(snap, &req); CodeOf(err) != CodeFieldNotFound {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeFieldNotFound)
	}
}

func TestComposeNodeRooted(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		ConnectionField: "resources",
		NodeID:          "acct-123",
		Columns:         []ColumnSpec{{Name: "id", Path: "id"}},
	}

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !composed.NodeRooted {
		t.Fatal("expected node rooted composition")
	}
	for _, want := range []string{
		"$node: ID!",
		"node(id: $node)",
		"... on Account {",
	} {
		if !strings.Contains(composed.Query, want) {
			t.Errorf("composed query missing %q:\n%s", want, composed.Query)
		}
	}
	if composed.Variables["node"] != "acct-123" {
		t.Errorf("node variable = %v", composed.Variables["node"])
	}
}

func TestComposeNodeRootedNoHosts(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		ConnectionField: "accounts",
		NodeID:          "acct-123",
		Columns:         []ColumnSpec{{Name: "id", Path: "id"}},
	}
	// Only the root query type exposes accounts.
	if _, err := Compose(snap, &req); CodeOf(err) != CodeFieldNotFound {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeFieldNotFound)
	}
}

func TestComposeSelectionFollowsSchema(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Columns = []ColumnSpec{
		{Name: "group", Path: "group.name"},
		{Name: "tags", Path: "metadata.tags"},
	}

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	// group.name resolves through the schema; metadata.tags stops at the
	// scalar metadata field and leaves the tail to the projector.
	if !strings.Contains(composed.Query, "group { name }") {
		t.Errorf("missing nested selection:\n%s", composed.Query)
	}
	if strings.Contains(composed.Query, "tags") {
		t.Errorf("scalar path tail should not be selected:\n%s", composed.Query)
	}
	if !strings.Contains(composed.Query, "metadata") {
		t.Errorf("missing metadata selection:\n%s", composed.Query)
	}
}

func TestComposeCompositeLeafGetsKey(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()
	req.Columns = []ColumnSpec{{Name: "group", Path: "group"}}

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(composed.Query, "group { id }") {
		t.Errorf("composite leaf needs a subselection:\n%s", composed.Query)
	}
}

func TestWithCursor(t *testing.T) {
	snap := testSnapshot()
	req := baseRequest()

	composed, err := Compose(snap, &req)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	vars := composed.WithCursor(nil)
	if value, ok := vars["cursor"]; !ok || value != nil {
		t.Errorf("first page cursor = %v (present %v), want explicit null", value, ok)
	}

	cursor := "page-2"
	vars = composed.WithCursor(&cursor)
	if vars["cursor"] != "page-2" {
		t.Errorf("cursor = %v, want page-2", vars["cursor"])
	}
	if composed.Variables["cursor"] != nil {
		t.Error("WithCursor must not mutate the composed variables")
	}
}

func TestValidateColumns(t *testing.T) {
	cases := []struct {
		name    string
		columns []ColumnSpec
	}{
		{"empty", nil},
		{"no name", []ColumnSpec{{Path: "id"}}},
		{"no path", []ColumnSpec{{Name: "id"}}},
		{"duplicate", []ColumnSpec{{Name: "id", Path: "id"}, {Name: "id", Path: "name"}}},
	}
	for _, tc := range cases {
		req := Request{ConnectionField: "accounts", Columns: tc.columns}
		if err := req.Validate(); CodeOf(err) != CodeBadRequest {
			t.Errorf("%s: code = %q, want %q", tc.name, CodeOf(err), CodeBadRequest)
		}
	}
}
