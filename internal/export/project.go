package export

import (
	"encoding/json"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// WarnFunc records a non-fatal projection problem for one cell.
type WarnFunc func(column, detail string)

// Project extracts one output row from a connection node. Each column's path
// is resolved with sequential key lookups; a missing intermediate key yields
// null. Subpath failures degrade the single cell to null via warn and never
// abort the row.
func Project(node map[string]any, columns []ColumnSpec, warn WarnFunc) map[string]any {
	if warn == nil {
		warn = func(string, string) {}
	}
	row := make(map[string]any, len(columns))
	for _, col := range columns {
		row[col.Name] = projectCell(node, col, warn)
	}
	return row
}

func projectCell(node map[string]any, col ColumnSpec, warn WarnFunc) any {
	value := resolvePath(node, col.Path)
	if value == nil || col.Subpath == "" {
		return value
	}

	// A subpath usually targets a JSON-encoded field; decode it first so the
	// expression sees structure, not a string.
	if text, ok := value.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			value = decoded
		}
	}

	result, err := jmespath.Search(col.Subpath, value)
	if err != nil {
		warn(col.Name, err.Error())
		return nil
	}
	return result
}

func resolvePath(node map[string]any, path string) any {
	var value any = node
	for _, segment := range strings.Split(path, ".") {
		object, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		if value, ok = object[segment]; !ok {
			return nil
		}
	}
	return value
}
