package dbmanager

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestClassifyCellKinds(t *testing.T) {
	oid := mustObjectID(t, "507f1f77bcf86cd799439011")
	cases := []struct {
		name    string
		value   interface{}
		kind    CellKind
		display string
	}{
		{"null marker", nil, CellNull, "null"},
		{"boolean", true, CellBoolean, "true"},
		{"int32", int32(42), CellNumber, "42"},
		{"int64", int64(9007199254740993), CellNumber, "9007199254740993"},
		{"float", 19.5, CellNumber, "19.5"},
		{"decimal", mustDecimal(t, "19.99"), CellNumber, "19.99"},
		{"string", "hello", CellString, "hello"},
		{"objectId", oid, CellObjectID, "507f1f77bcf86cd799439011"},
		{"binary", primitive.Binary{Subtype: 0, Data: []byte{1, 2, 3}}, CellBinary, "binary (3 bytes)"},
		{"array single", primitive.A{"a"}, CellArray, "[1 item]"},
		{"array many", primitive.A{"a", "b", "c"}, CellArray, "[3 items]"},
		{"object", bson.D{{Key: "a", Value: 1}}, CellObject, "{...}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cell := ClassifyCell(tc.value)
			if cell.Kind != tc.kind {
				t.Fatalf("Expected kind %s, got %s", tc.kind, cell.Kind)
			}
			if cell.Display != tc.display {
				t.Fatalf("Expected display %q, got %q", tc.display, cell.Display)
			}
			if cell.Truncated {
				t.Fatal("Short values must not be marked truncated")
			}
		})
	}
}

func TestClassifyCellDate(t *testing.T) {
	when := primitive.NewDateTimeFromTime(time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC))
	cell := ClassifyCell(when)
	if cell.Kind != CellDate {
		t.Fatalf("Expected date kind, got %s", cell.Kind)
	}
	// rendering is localized, so only assert shape
	if cell.Display == "" || !strings.Contains(cell.Display, "2024") {
		t.Fatalf("Unexpected date rendering: %q", cell.Display)
	}
}

func TestClassifyCellTruncation(t *testing.T) {
	long := strings.Repeat("é", 60)
	cell := ClassifyCell(long)

	if !cell.Truncated {
		t.Fatal("Expected truncation flag")
	}
	runes := []rune(cell.Display)
	if len(runes) != 51 || runes[50] != '…' {
		t.Fatalf("Expected 50 runes plus ellipsis, got %d runes", len(runes))
	}
	if string(runes[:50]) != strings.Repeat("é", 50) {
		t.Fatal("Truncation must cut at rune boundaries")
	}

	exact := strings.Repeat("a", 50)
	if cell := ClassifyCell(exact); cell.Truncated || cell.Display != exact {
		t.Fatalf("A value at the threshold must not be truncated, got %+v", cell)
	}
}

func TestTableColumnsFirstEncounterOrder(t *testing.T) {
	docs := []bson.D{
		{{Key: "_id", Value: 1}, {Key: "name", Value: "a"}},
		{{Key: "_id", Value: 2}, {Key: "email", Value: "b@x"}, {Key: "name", Value: "b"}},
	}

	columns := TableColumns(docs)
	expected := []string{"_id", "name", "email"}
	if !reflect.DeepEqual(columns, expected) {
		t.Fatalf("Expected %v, got %v", expected, columns)
	}
}

func TestTableRowsMissingFieldsRenderNull(t *testing.T) {
	docs := []bson.D{
		{{Key: "name", Value: "a"}, {Key: "age", Value: int32(30)}},
		{{Key: "name", Value: "b"}},
	}

	columns := TableColumns(docs)
	rows := TableRows(docs, columns)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][1].Kind != CellNumber || rows[0][1].Display != "30" {
		t.Fatalf("Unexpected cell: %+v", rows[0][1])
	}
	if rows[1][1].Kind != CellNull || rows[1][1].Display != "null" {
		t.Fatalf("Missing field must render the null marker, got %+v", rows[1][1])
	}
}

func mustDecimal(t *testing.T, s string) primitive.Decimal128 {
	t.Helper()
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		t.Fatalf("Invalid decimal %q: %v", s, err)
	}
	return d
}
