package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	columns := []ColumnSpec{
		{Name: "id", Path: "id"},
		{Name: "name", Path: "name"},
		{Name: "active", Path: "active"},
		{Name: "count", Path: "count"},
		{Name: "tags", Path: "tags"},
	}

	sink, err := NewCSVSink(dir, columns)
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}
	rows := []map[string]any{
		{"id": "a-1", "name": "prod", "active": true, "count": float64(3), "tags": map[string]any{"env": "prod"}},
		{"id": "a-2", "name": "", "active": false, "count": nil, "tags": nil},
	}
	for _, row := range rows {
		if err := sink.WriteRow(row); err != nil {
			t.Fatalf("WriteRow failed: %v", err)
		}
	}
	if sink.Rows() != 2 {
		t.Errorf("Rows() = %d, want 2", sink.Rows())
	}

	path, err := sink.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open staging file: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read staging file: %v", err)
	}

	want := [][]string{
		{"id", "name", "active", "count", "tags"},
		{"a-1", "prod", "true", "3", `{"env":"prod"}`},
		{"a-2", "", "false", "", ""},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
}

func TestCSVSinkAbortRemovesFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir, []ColumnSpec{{Name: "id", Path: "id"}})
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}
	sink.Abort()

	matches, err := filepath.Glob(filepath.Join(dir, "export-*.csv"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("staging files left behind: %v", matches)
	}
}
