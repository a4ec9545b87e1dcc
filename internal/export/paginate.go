package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stacklet/mcp-server/internal/platform"
)

// DefaultPageSize is used when a request does not set its own.
const DefaultPageSize = 100

// RowSink receives projected rows as they are extracted from each page.
type RowSink interface {
	WriteRow(row map[string]any) error
}

// ProgressFunc observes the running row count after each page, making partial
// progress visible to pollers.
type ProgressFunc func(rows int64)

// Driver fetches a connection to exhaustion, strictly in cursor order.
// Connection cursors are inherently sequential; fanning out across pages
// would risk inconsistent pagination if the dataset mutates mid-export.
type Driver struct {
	Executor   platform.Executor
	Logger     *slog.Logger
	OnProgress ProgressFunc
}

// Run composes the query for req and pages through the connection, streaming
// projected rows into sink. It returns the number of rows written. Any
// terminal error means the artifact must be discarded; the row count still
// reflects the attempt.
func (d *Driver) Run(ctx context.Context, snap *platform.Snapshot, req *Request, sink RowSink) (int64, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	composed, err := Compose(snap, req)
	if err != nil {
		return 0, err
	}

	var cursor *string
	var total int64
	for {
		result, err := d.Executor.Execute(ctx, composed.Query, composed.WithCursor(cursor))
		if err != nil {
			return total, wrapError(CodeTransport, err)
		}
		if len(result.Errors) > 0 {
			return total, errorf(CodeUpstreamErrors, "%s", joinErrors(result.Errors))
		}

		conn, err := connectionPayload(result.Data, composed)
		if err != nil {
			return total, err
		}

		// Non-empty problems are a terminal failure, with the upstream
		// messages preserved verbatim.
		if problems := problemMessages(conn); len(problems) > 0 {
			return total, errorf(CodeUpstreamProblems, "%s", strings.Join(problems, "; "))
		}

		edges, _ := conn["edges"].([]any)
		for _, e := range edges {
			edge, _ := e.(map[string]any)
			node, _ := edge["node"].(map[string]any)
			row := Project(node, req.Columns, func(column, detail string) {
				logger.Warn("projection warning", "column", column, "detail", detail)
			})
			if err := sink.WriteRow(row); err != nil {
				return total, err
			}
			total++
			if req.RowLimit > 0 && total >= int64(req.RowLimit) {
				// Truncation is not failure.
				d.progress(total)
				return total, nil
			}
		}
		d.progress(total)

		pageInfo, _ := conn["pageInfo"].(map[string]any)
		hasNext, _ := pageInfo["hasNextPage"].(bool)
		if !hasNext {
			return total, nil
		}
		next, _ := pageInfo["endCursor"].(string)
		if next == "" || !composed.UsesCursor {
			return total, nil
		}
		if cursor != nil && next == *cursor {
			return total, errorf(CodeTransport, "pagination cursor did not advance past %q", next)
		}
		cursor = &next
	}
}

func (d *Driver) progress(rows int64) {
	if d.OnProgress != nil {
		d.OnProgress(rows)
	}
}

func connectionPayload(data map[string]any, composed *Composed) (map[string]any, error) {
	if composed.NodeRooted {
		node, ok := data["node"].(map[string]any)
		if !ok {
			return nil, errorf(CodeNodeNotFound, "node %v not found", composed.Variables["node"])
		}
		data = node
	}
	conn, ok := data[composed.Field].(map[string]any)
	if !ok {
		return nil, errorf(CodeTransport, "response is missing the %q connection payload", composed.Field)
	}
	return conn, nil
}

func problemMessages(conn map[string]any) []string {
	raw, _ := conn["problems"].([]any)
	var messages []string
	for _, p := range raw {
		if problem, ok := p.(map[string]any); ok {
			if message, ok := problem["message"].(string); ok {
				messages = append(messages, message)
				continue
			}
		}
		messages = append(messages, fmt.Sprintf("%v", p))
	}
	return messages
}

func joinErrors(errs []platform.QueryError) string {
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}
