package dbmanager

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CellKind classifies a value for table display
type CellKind string

const (
	CellNull     CellKind = "null"
	CellBoolean  CellKind = "boolean"
	CellNumber   CellKind = "number"
	CellString   CellKind = "string"
	CellDate     CellKind = "date"
	CellObjectID CellKind = "objectId"
	CellBinary   CellKind = "binary"
	CellArray    CellKind = "array"
	CellObject   CellKind = "object"
)

// maxCellRunes is the display truncation threshold for string cells. It
// bounds the table view only; the underlying value used for editing and
// export is never truncated.
const maxCellRunes = 50

// cellDateFormat is the human-facing date rendering for table cells
const cellDateFormat = "Jan 2, 2006 15:04:05"

// CellDisplay is the type-aware rendering of one table cell
type CellDisplay struct {
	Kind      CellKind `json:"kind"`
	Display   string   `json:"display"`
	Truncated bool     `json:"truncated,omitempty"`
}

// ClassifyCell renders a native value for a table cell. Null gets a distinct
// marker rather than an empty string; arrays summarize as a count; plain
// objects show a generic placeholder.
func ClassifyCell(value interface{}) CellDisplay {
	switch v := value.(type) {
	case nil, primitive.Null:
		return CellDisplay{Kind: CellNull, Display: "null"}
	case bool:
		return CellDisplay{Kind: CellBoolean, Display: strconv.FormatBool(v)}
	case string:
		return truncateCell(CellString, v)
	case int:
		return CellDisplay{Kind: CellNumber, Display: strconv.Itoa(v)}
	case int32:
		return CellDisplay{Kind: CellNumber, Display: strconv.FormatInt(int64(v), 10)}
	case int64:
		return CellDisplay{Kind: CellNumber, Display: strconv.FormatInt(v, 10)}
	case float64:
		return CellDisplay{Kind: CellNumber, Display: strconv.FormatFloat(v, 'g', -1, 64)}
	case float32:
		return CellDisplay{Kind: CellNumber, Display: strconv.FormatFloat(float64(v), 'g', -1, 32)}
	case primitive.Decimal128:
		return CellDisplay{Kind: CellNumber, Display: v.String()}
	case primitive.ObjectID:
		return CellDisplay{Kind: CellObjectID, Display: v.Hex()}
	case primitive.DateTime:
		return CellDisplay{Kind: CellDate, Display: v.Time().Local().Format(cellDateFormat)}
	case time.Time:
		return CellDisplay{Kind: CellDate, Display: v.Local().Format(cellDateFormat)}
	case primitive.Timestamp:
		return CellDisplay{Kind: CellDate, Display: time.Unix(int64(v.T), 0).Local().Format(cellDateFormat)}
	case primitive.Binary:
		return CellDisplay{Kind: CellBinary, Display: fmt.Sprintf("binary (%d bytes)", len(v.Data))}
	case primitive.A:
		return CellDisplay{Kind: CellArray, Display: arraySummary(len(v))}
	case []interface{}:
		return CellDisplay{Kind: CellArray, Display: arraySummary(len(v))}
	case bson.D:
		return CellDisplay{Kind: CellObject, Display: "{...}"}
	case bson.M:
		return CellDisplay{Kind: CellObject, Display: "{...}"}
	case map[string]interface{}:
		return CellDisplay{Kind: CellObject, Display: "{...}"}
	default:
		return truncateCell(CellString, fmt.Sprintf("%v", v))
	}
}

func arraySummary(n int) string {
	if n == 1 {
		return "[1 item]"
	}
	return fmt.Sprintf("[%d items]", n)
}

func truncateCell(kind CellKind, s string) CellDisplay {
	runes := []rune(s)
	if len(runes) <= maxCellRunes {
		return CellDisplay{Kind: kind, Display: s}
	}
	return CellDisplay{Kind: kind, Display: string(runes[:maxCellRunes]) + "…", Truncated: true}
}

// TableColumns returns the union of field names across the page, in first
// encounter order
func TableColumns(docs []bson.D) []string {
	seen := make(map[string]bool)
	columns := make([]string, 0)
	for _, doc := range docs {
		for _, elem := range doc {
			if !seen[elem.Key] {
				seen[elem.Key] = true
				columns = append(columns, elem.Key)
			}
		}
	}
	return columns
}

// TableRows classifies every cell of the page against the column set.
// Missing fields render as the null marker.
func TableRows(docs []bson.D, columns []string) [][]CellDisplay {
	rows := make([][]CellDisplay, len(docs))
	for i, doc := range docs {
		values := make(map[string]interface{}, len(doc))
		for _, elem := range doc {
			values[elem.Key] = elem.Value
		}
		row := make([]CellDisplay, len(columns))
		for j, column := range columns {
			row[j] = ClassifyCell(values[column])
		}
		rows[i] = row
	}
	return rows
}
