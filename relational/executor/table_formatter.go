package executor

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/wbrown/janus-relational/relational"
)

// TableFormatter provides utilities for formatting tuple streams as tables
type TableFormatter struct {
	// MaxWidth is the maximum width for a column value
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatStream drains a stream from its current position and formats
// the remaining tuples as a markdown table. The stream must be open.
func (tf *TableFormatter) FormatStream(s TupleStream) (string, error) {
	tuples, err := drain(s)
	if err != nil {
		return "", err
	}
	return tf.FormatTuples(s.Schema(), tuples), nil
}

// FormatTuples formats a schema and tuple slice as a markdown table
func (tf *TableFormatter) FormatTuples(schema *relational.Schema, tuples []relational.Tuple) string {
	if len(tuples) == 0 {
		return fmt.Sprintf("_Schema: %s_\n\n_No rows_", schema)
	}

	tableString := &strings.Builder{}

	// All columns use AlignNone for simple separators
	alignment := make([]tw.Align, schema.Len())
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	headers := make([]string, schema.Len())
	for i := range headers {
		headers[i] = schema.Attribute(i).Name
	}
	table.Header(headers)

	for _, tuple := range tuples {
		row := make([]string, len(tuple))
		for j, f := range tuple {
			row[j] = tf.formatField(f)
		}
		table.Append(row)
	}

	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(tuples)))

	return tableString.String()
}

// formatField converts a field to its cell text
func (tf *TableFormatter) formatField(f relational.Field) string {
	if f == nil {
		return "nil"
	}
	s := f.String()
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		s = s[:tf.MaxWidth] + tf.TruncateString
	}
	return s
}

// Quick helper functions for debugging

// PrintStream drains a stream and prints it to stdout
func PrintStream(s TupleStream) error {
	formatter := NewTableFormatter()
	out, err := formatter.FormatStream(s)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// StreamString drains a stream into its table representation
func StreamString(s TupleStream) (string, error) {
	formatter := NewTableFormatter()
	return formatter.FormatStream(s)
}
