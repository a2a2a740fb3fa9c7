package dbmanager

import (
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCursorRoundTrip(t *testing.T) {
	createdAt := "2024-05-17T10:30:00.000Z"
	original := &Cursor{CreatedAt: &createdAt, CreatedAtIsDate: true, LastID: "507f1f77bcf86cd799439011"}

	token := EncodeCursor(original)
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("Token must be URL-safe without padding, got %q", token)
	}

	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("Failed to decode cursor: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Fatalf("Expected %+v, got %+v", original, decoded)
	}
}

func TestCursorRoundTripNullCreatedAt(t *testing.T) {
	original := &Cursor{LastID: "507f1f77bcf86cd799439011"}

	decoded, err := DecodeCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("Failed to decode cursor: %v", err)
	}
	if decoded.CreatedAt != nil {
		t.Fatalf("Expected nil createdAt, got %v", *decoded.CreatedAt)
	}
	if decoded.LastID != original.LastID {
		t.Fatalf("Expected last id %s, got %s", original.LastID, decoded.LastID)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	tokens := []string{
		"%%not-base64%%",
		"bm90IGpzb24",        // "not json"
		"e30",                // "{}" - missing last id
		"eyJsYXN0SWQiOiIifQ", // {"lastId":""}
	}
	for _, token := range tokens {
		if _, err := DecodeCursor(token); err == nil {
			t.Fatalf("Expected error for token %q", token)
		} else if _, ok := err.(*ValueDecodeError); !ok {
			t.Fatalf("Expected ValueDecodeError for token %q, got %T", token, err)
		}
	}
}

func TestClampPageSize(t *testing.T) {
	cases := []struct {
		in       int64
		max      int64
		expected int64
	}{
		{0, MaxPageSize, DefaultPageSize},
		{-5, MaxPageSize, DefaultPageSize},
		{1, MaxPageSize, 1},
		{20, MaxPageSize, 20},
		{100, MaxPageSize, 100},
		{500, MaxPageSize, MaxPageSize},
		// a configured ceiling below the hard cap wins
		{80, 50, 50},
		{30, 50, 30},
		{0, 10, 10},
		// a ceiling that is unset or above the hard cap falls back to it
		{500, 0, MaxPageSize},
		{500, 1000, MaxPageSize},
	}
	for _, tc := range cases {
		if got := ClampPageSize(tc.in, tc.max); got != tc.expected {
			t.Fatalf("ClampPageSize(%d, %d): expected %d, got %d", tc.in, tc.max, tc.expected, got)
		}
	}
}

func TestPageSortMirrorsCursorCondition(t *testing.T) {
	sort := PageSort()
	if len(sort) != 2 || sort[0].Key != "createdAt" || sort[0].Value != -1 || sort[1].Key != "_id" || sort[1].Value != -1 {
		t.Fatalf("Unexpected sort order: %v", sort)
	}
}

func TestBuildListQueryEmpty(t *testing.T) {
	query := BuildListQuery(PageRequest{}, nil)
	if !reflect.DeepEqual(query, bson.M{}) {
		t.Fatalf("Expected match-all query, got %v", query)
	}
}

func TestBuildListQuerySingleCondition(t *testing.T) {
	filter := bson.M{"status": "active"}
	query := BuildListQuery(PageRequest{Filter: filter}, nil)

	// a single condition is used as-is, not wrapped in $and
	if !reflect.DeepEqual(query, filter) {
		t.Fatalf("Expected unwrapped filter, got %v", query)
	}
}

func TestBuildListQueryComposed(t *testing.T) {
	createdAt := "2024-05-17T10:30:00.000Z"
	req := PageRequest{
		Filter: bson.M{"status": "active"},
		Search: "alice",
		Cursor: &Cursor{CreatedAt: &createdAt, LastID: "507f1f77bcf86cd799439011"},
	}

	query := BuildListQuery(req, bson.M{"name": "bob"})
	conditions, ok := query["$and"].([]bson.M)
	if !ok {
		t.Fatalf("Expected $and composition, got %v", query)
	}
	if len(conditions) != 3 {
		t.Fatalf("Expected 3 conditions, got %d", len(conditions))
	}
	if !reflect.DeepEqual(conditions[0], req.Filter) {
		t.Fatalf("Expected filter first, got %v", conditions[0])
	}
	if _, exists := conditions[1]["$or"]; !exists {
		t.Fatalf("Expected search disjunction second, got %v", conditions[1])
	}
	if _, exists := conditions[2]["$or"]; !exists {
		t.Fatalf("Expected cursor condition third, got %v", conditions[2])
	}
}

func TestBuildCursorCondition(t *testing.T) {
	createdAt := "2024-05-17T10:30:00.000Z"
	cond := buildCursorCondition(&Cursor{CreatedAt: &createdAt, CreatedAtIsDate: true, LastID: "507f1f77bcf86cd799439011"})

	branches, ok := cond["$or"].([]bson.M)
	if !ok || len(branches) != 2 {
		t.Fatalf("Expected two-branch disjunction, got %v", cond)
	}

	boundary := primitive.NewDateTimeFromTime(time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC))
	if !reflect.DeepEqual(branches[0], bson.M{"createdAt": bson.M{"$lt": boundary}}) {
		t.Fatalf("Unexpected strict branch: %v", branches[0])
	}

	lastID := mustObjectID(t, "507f1f77bcf86cd799439011")
	expected := bson.M{"createdAt": boundary, "_id": bson.M{"$lt": lastID}}
	if !reflect.DeepEqual(branches[1], expected) {
		t.Fatalf("Unexpected tie branch: %v", branches[1])
	}
}

// TestBuildCursorConditionStringCreatedAt: a cursor issued over rows that
// store createdAt as an ISO string must keep a string boundary. The store
// compares type-bracketed, so a date-typed boundary would match none of the
// sibling rows and the sequence would end early.
func TestBuildCursorConditionStringCreatedAt(t *testing.T) {
	id := mustObjectID(t, "507f1f77bcf86cd799439011")
	c := CursorFromDocument(bson.D{
		{Key: "_id", Value: id},
		{Key: "createdAt", Value: "2024-05-17T10:30:00.000Z"},
	})
	if c.CreatedAtIsDate {
		t.Fatal("String createdAt must not be marked as a native date")
	}

	decoded, err := DecodeCursor(EncodeCursor(c))
	if err != nil {
		t.Fatalf("Failed to decode cursor: %v", err)
	}

	cond := buildCursorCondition(decoded)
	branches := cond["$or"].([]bson.M)
	lt := branches[0]["createdAt"].(bson.M)["$lt"]
	if _, ok := lt.(string); !ok {
		t.Fatalf("Boundary must stay a string, got %T", lt)
	}
	if lt != "2024-05-17T10:30:00.000Z" {
		t.Fatalf("Unexpected boundary: %v", lt)
	}
	if branches[1]["createdAt"] != "2024-05-17T10:30:00.000Z" {
		t.Fatalf("Tie branch must carry the string boundary, got %v", branches[1]["createdAt"])
	}
}

func TestBuildCursorConditionNullCreatedAt(t *testing.T) {
	cond := buildCursorCondition(&Cursor{LastID: "507f1f77bcf86cd799439011"})

	lastID := mustObjectID(t, "507f1f77bcf86cd799439011")
	expected := bson.M{"createdAt": nil, "_id": bson.M{"$lt": lastID}}
	if !reflect.DeepEqual(cond, expected) {
		t.Fatalf("Expected equality-only condition, got %v", cond)
	}
}

func TestBuildSearchConditionQuotesRegex(t *testing.T) {
	cond := buildSearchCondition("a.b*", bson.M{"name": "x"})

	branches := cond["$or"].([]bson.M)
	found := false
	for _, branch := range branches {
		if nested, ok := branch["name"].(bson.M); ok {
			found = true
			if nested["$regex"] != `a\.b\*` {
				t.Fatalf("Search term must be quoted, got %v", nested["$regex"])
			}
			if nested["$options"] != "i" {
				t.Fatalf("Expected case-insensitive match, got %v", nested["$options"])
			}
		}
	}
	if !found {
		t.Fatal("Expected a condition on the sampled name field")
	}
}

func TestBuildSearchConditionNumericTerm(t *testing.T) {
	cond := buildSearchCondition("42", bson.M{"age": int32(30), "name": "x"})

	branches := cond["$or"].([]bson.M)
	var ageBranch bson.M
	for _, branch := range branches {
		if _, exists := branch["age"]; exists {
			ageBranch = branch
		}
	}
	if ageBranch == nil {
		t.Fatalf("Expected numeric equality branch, got %v", branches)
	}
	if !reflect.DeepEqual(ageBranch, bson.M{"age": float64(42)}) {
		t.Fatalf("Expected equality on the parsed number, got %v", ageBranch)
	}
}

func TestBuildSearchConditionSkipsNumericFieldsForText(t *testing.T) {
	cond := buildSearchCondition("alice", bson.M{"age": int32(30)})

	for _, branch := range cond["$or"].([]bson.M) {
		if _, exists := branch["age"]; exists {
			t.Fatalf("Text term must not match numeric fields: %v", branch)
		}
	}
}

func TestDetectSearchableFields(t *testing.T) {
	now := primitive.NewDateTimeFromTime(time.Now())
	sample := bson.M{
		"_id":   primitive.NewObjectID(),
		"name":  "alice",
		"age":   int32(30),
		"since": now,
		"profile": bson.M{
			"bio": "hello",
		},
		"raw": primitive.Binary{Subtype: 0, Data: []byte{1}},
	}

	fields := DetectSearchableFields(sample)
	expected := map[string]string{
		"name":        "string",
		"age":         "number",
		"since":       "date",
		"profile.bio": "string",
	}
	if !reflect.DeepEqual(fields, expected) {
		t.Fatalf("Expected %v, got %v", expected, fields)
	}
}

func TestCursorFromDocument(t *testing.T) {
	id := mustObjectID(t, "507f1f77bcf86cd799439011")
	createdAt := primitive.NewDateTimeFromTime(time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC))

	c := CursorFromDocument(bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "alice"},
		{Key: "createdAt", Value: createdAt},
	})

	if c.LastID != "507f1f77bcf86cd799439011" {
		t.Fatalf("Expected hex last id, got %s", c.LastID)
	}
	if c.CreatedAt == nil || *c.CreatedAt != "2024-05-17T10:30:00.000Z" {
		t.Fatalf("Expected transport-form createdAt, got %v", c.CreatedAt)
	}
	if !c.CreatedAtIsDate {
		t.Fatal("Native date must be marked as such")
	}
}

// TestPaginationSequenceCompletes walks a small collection page by page
// through the cursor machinery, applying the sort and the continuation
// condition to an in-memory slice the way the store would. Every row must be
// seen exactly once, including rows that tie on createdAt.
func TestPaginationSequenceCompletes(t *testing.T) {
	t1 := primitive.NewDateTimeFromTime(time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC))
	t2 := primitive.NewDateTimeFromTime(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC))
	idA := mustObjectID(t, "507f191e810c19729de860ea")
	idB := mustObjectID(t, "507f191e810c19729de860eb")
	idC := mustObjectID(t, "507f191e810c19729de860e9")

	docs := []bson.D{
		{{Key: "_id", Value: idA}, {Key: "createdAt", Value: t1}},
		{{Key: "_id", Value: idB}, {Key: "createdAt", Value: t2}},
		{{Key: "_id", Value: idC}, {Key: "createdAt", Value: t2}},
	}

	steps := []struct {
		expectedID primitive.ObjectID
		hasMore    bool
	}{
		{idB, true},  // newest timestamp, highest id
		{idC, true},  // same timestamp, id tie-break
		{idA, false}, // oldest
	}

	var cursor *Cursor
	for i, step := range steps {
		page, hasMore := simulatePage(t, docs, cursor, 1)
		if len(page) != 1 {
			t.Fatalf("Step %d: expected one row, got %d", i, len(page))
		}
		_, id := pageSortKey(t, page[0])
		if id != step.expectedID {
			t.Fatalf("Step %d: expected %s, got %s", i, step.expectedID.Hex(), id.Hex())
		}
		if hasMore != step.hasMore {
			t.Fatalf("Step %d: expected hasMore=%v, got %v", i, step.hasMore, hasMore)
		}

		next := CursorFromDocument(page[0])
		decoded, err := DecodeCursor(EncodeCursor(next))
		if err != nil {
			t.Fatalf("Step %d: failed to round-trip cursor: %v", i, err)
		}
		cursor = decoded
	}

	// replaying the final cursor returns nothing
	page, hasMore := simulatePage(t, docs, cursor, 1)
	if len(page) != 0 || hasMore {
		t.Fatalf("Expected an exhausted sequence, got %d rows (hasMore=%v)", len(page), hasMore)
	}
}

// simulatePage applies the fixed sort and the cursor condition to an
// in-memory slice, mirroring one Find call with limit+1 hasMore detection
func simulatePage(t *testing.T, docs []bson.D, c *Cursor, limit int) ([]bson.D, bool) {
	t.Helper()

	sorted := make([]bson.D, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, ii := pageSortKey(t, sorted[i])
		cj, ij := pageSortKey(t, sorted[j])
		if ci != cj {
			return ci > cj
		}
		return ii.Hex() > ij.Hex()
	})

	matched := make([]bson.D, 0, len(sorted))
	for _, doc := range sorted {
		if c == nil || matchesCursorCondition(t, buildCursorCondition(c), doc) {
			matched = append(matched, doc)
		}
	}

	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore
}

// matchesCursorCondition evaluates the two-branch continuation condition
// against one document
func matchesCursorCondition(t *testing.T, cond bson.M, doc bson.D) bool {
	t.Helper()
	createdAt, id := pageSortKey(t, doc)

	branches, ok := cond["$or"].([]bson.M)
	if !ok {
		t.Fatalf("Unexpected condition shape: %v", cond)
	}
	boundary, ok := branches[0]["createdAt"].(bson.M)["$lt"].(primitive.DateTime)
	if !ok {
		t.Fatalf("Expected a date boundary, got %v", branches[0])
	}
	if createdAt < boundary {
		return true
	}
	tie, ok := branches[1]["createdAt"].(primitive.DateTime)
	if !ok {
		t.Fatalf("Expected a date tie value, got %v", branches[1])
	}
	lastID := branches[1]["_id"].(bson.M)["$lt"].(primitive.ObjectID)
	return createdAt == tie && id.Hex() < lastID.Hex()
}

func pageSortKey(t *testing.T, doc bson.D) (primitive.DateTime, primitive.ObjectID) {
	t.Helper()
	var createdAt primitive.DateTime
	var id primitive.ObjectID
	for _, elem := range doc {
		switch elem.Key {
		case "createdAt":
			createdAt = elem.Value.(primitive.DateTime)
		case "_id":
			id = elem.Value.(primitive.ObjectID)
		}
	}
	return createdAt, id
}

func TestCursorFromDocumentWithoutCreatedAt(t *testing.T) {
	c := CursorFromDocument(bson.D{
		{Key: "_id", Value: mustObjectID(t, "507f1f77bcf86cd799439011")},
	})
	if c.CreatedAt != nil {
		t.Fatalf("Expected nil createdAt, got %v", *c.CreatedAt)
	}
	if c.LastID == "" {
		t.Fatal("Expected last id to be set")
	}
}
