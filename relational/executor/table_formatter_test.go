package executor

import (
	"strings"
	"testing"

	"github.com/wbrown/janus-relational/relational"
)

func TestTableFormatter(t *testing.T) {
	formatter := NewTableFormatter()

	t.Run("EmptyStream", func(t *testing.T) {
		s := NewSliceStream(relational.IntSchema(2), nil)
		if err := s.Open(); err != nil {
			t.Fatalf("open: %v", err)
		}
		result, err := formatter.FormatStream(s)
		if err != nil {
			t.Fatalf("format: %v", err)
		}
		if !strings.Contains(result, "_No rows_") {
			t.Errorf("expected no-rows marker, got %s", result)
		}
	})

	t.Run("JoinResult", func(t *testing.T) {
		j, err := NewHashJoin(NewJoinPredicate(relational.Equals, 0, 0),
			scenarioLeft(), scenarioRight())
		if err != nil {
			t.Fatalf("NewHashJoin: %v", err)
		}
		if err := j.Open(); err != nil {
			t.Fatalf("open: %v", err)
		}
		result, err := formatter.FormatStream(j)
		if err != nil {
			t.Fatalf("format: %v", err)
		}

		// Markdown shape: header row, separator, row count
		if !strings.Contains(result, "| c0") {
			t.Errorf("missing markdown header:\n%s", result)
		}
		if !strings.Contains(result, "|---") {
			t.Errorf("missing markdown separator:\n%s", result)
		}
		if !strings.Contains(result, "_10 rows_") {
			t.Errorf("missing row count:\n%s", result)
		}
	})

	t.Run("Truncation", func(t *testing.T) {
		formatter := NewTableFormatter()
		formatter.MaxWidth = 8

		schema := relational.NewSchema([]relational.Attribute{
			{Name: "text", Type: relational.StringType},
		})
		s := NewSliceStream(schema, []relational.Tuple{
			relational.NewTuple(relational.StringField("a string long enough to truncate")),
		})
		if err := s.Open(); err != nil {
			t.Fatalf("open: %v", err)
		}
		result, err := formatter.FormatStream(s)
		if err != nil {
			t.Fatalf("format: %v", err)
		}
		if !strings.Contains(result, "a string...") {
			t.Errorf("expected truncated value, got:\n%s", result)
		}
	})
}

func TestStreamString(t *testing.T) {
	s := NewSliceStream(relational.IntSchema(1), []relational.Tuple{
		relational.IntTuple(42),
	})
	if err := s.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}

	out, err := StreamString(s)
	if err != nil {
		t.Fatalf("StreamString: %v", err)
	}
	if !strings.Contains(out, "42") || !strings.Contains(out, "_1 rows_") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
