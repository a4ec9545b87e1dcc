package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// CSVSink streams projected rows to a staging file as pages arrive, keeping
// memory bounded for large exports. The staging file is only published as an
// artifact after the whole export succeeds; Abort discards it.
type CSVSink struct {
	columns []ColumnSpec
	file    *os.File
	writer  *csv.Writer
	rows    int64
}

// NewCSVSink creates a staging sink in dir and writes the header line, which
// matches the declared column order exactly.
func NewCSVSink(dir string, columns []ColumnSpec) (*CSVSink, error) {
	file, err := os.CreateTemp(dir, "export-*.csv")
	if err != nil {
		return nil, wrapError(CodeArtifactWrite, err)
	}

	s := &CSVSink{
		columns: columns,
		file:    file,
		writer:  csv.NewWriter(file),
	}
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	if err := s.writer.Write(header); err != nil {
		s.Abort()
		return nil, wrapError(CodeArtifactWrite, err)
	}
	return s, nil
}

// WriteRow appends one projected row in declared column order.
func (s *CSVSink) WriteRow(row map[string]any) error {
	record := make([]string, len(s.columns))
	for i, col := range s.columns {
		record[i] = formatCell(row[col.Name])
	}
	if err := s.writer.Write(record); err != nil {
		return wrapError(CodeArtifactWrite, err)
	}
	s.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (s *CSVSink) Rows() int64 { return s.rows }

// Finish flushes and closes the staging file and returns its path. The caller
// owns the file from here and removes it after publishing.
func (s *CSVSink) Finish() (string, error) {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.Abort()
		return "", wrapError(CodeArtifactWrite, err)
	}
	path := s.file.Name()
	if err := s.file.Close(); err != nil {
		_ = os.Remove(path)
		return "", wrapError(CodeArtifactWrite, err)
	}
	return path, nil
}

// Abort discards the staging file. Export artifacts are all-or-nothing: a
// failed export never leaves a partial file behind.
func (s *CSVSink) Abort() {
	path := s.file.Name()
	_ = s.file.Close()
	_ = os.Remove(path)
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
