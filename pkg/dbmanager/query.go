package dbmanager

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Page size bounds for document listing
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// sortField is the primary pagination key. Insertion id alone does not
// reflect recency once documents are replaced or migrated, so createdAt
// leads and _id breaks ties as a total order.
const sortField = "createdAt"

// Cursor is the continuation token for one pagination sequence. It is only
// valid against the same (database, collection, filter, search) it was
// issued for; replaying it with different parameters may skip or repeat rows.
type Cursor struct {
	CreatedAt *string `json:"createdAt"`
	// CreatedAtIsDate records whether the boundary row stored createdAt as a
	// native date. The store compares type-bracketed, so the continuation
	// condition must carry the same type the sibling rows do or it matches
	// nothing.
	CreatedAtIsDate bool   `json:"createdAtIsDate,omitempty"`
	LastID          string `json:"lastId"`
}

// EncodeCursor serializes a cursor into its opaque token form
func EncodeCursor(c *Cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque token previously issued by EncodeCursor.
// Tokens are never accepted as freeform query fragments: anything that does
// not decode into the cursor shape is rejected.
func DecodeCursor(token string) (*Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, NewValueDecodeError("invalid cursor token: %v", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, NewValueDecodeError("invalid cursor token: %v", err)
	}
	if c.LastID == "" {
		return nil, NewValueDecodeError("invalid cursor token: missing last id")
	}
	return &c, nil
}

// PageRequest is one paginated fetch over a collection
type PageRequest struct {
	Filter bson.M
	Search string
	Cursor *Cursor
	Limit  int64
}

// ClampPageSize bounds a requested page size to [1, max]. A max that is not
// positive, or above MaxPageSize, falls back to MaxPageSize.
func ClampPageSize(limit, max int64) int64 {
	if max <= 0 || max > MaxPageSize {
		max = MaxPageSize
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > max {
		return max
	}
	return limit
}

// PageSort is the fixed sort order for document listing: createdAt
// descending, _id descending. The cursor condition must exactly mirror it.
func PageSort() bson.D {
	return bson.D{
		{Key: sortField, Value: -1},
		{Key: "_id", Value: -1},
	}
}

// BuildListQuery composes the filter, free-text search, and cursor
// continuation into one query. Conditions are AND-combined when more than one
// is present; zero conditions yields a match-all query.
func BuildListQuery(req PageRequest, sample bson.M) bson.M {
	conditions := make([]bson.M, 0, 3)

	if len(req.Filter) > 0 {
		conditions = append(conditions, req.Filter)
	}
	if req.Search != "" {
		if search := buildSearchCondition(req.Search, sample); search != nil {
			conditions = append(conditions, search)
		}
	}
	if req.Cursor != nil {
		conditions = append(conditions, buildCursorCondition(req.Cursor))
	}

	switch len(conditions) {
	case 0:
		return bson.M{}
	case 1:
		return conditions[0]
	default:
		return bson.M{"$and": conditions}
	}
}

// buildCursorCondition continues after the cursor position:
// createdAt < c OR (createdAt == c AND _id < lastId). When the last row had
// no createdAt only the equality branch applies; non-null dates sort before
// null under the descending order, so no row is lost.
func buildCursorCondition(c *Cursor) bson.M {
	lastID := ParseDocumentID(c.LastID)

	if c.CreatedAt == nil {
		return bson.M{
			sortField: nil,
			"_id":     bson.M{"$lt": lastID},
		}
	}

	var boundary interface{} = *c.CreatedAt
	if c.CreatedAtIsDate {
		if t, err := parseTransportTime(*c.CreatedAt); err == nil {
			boundary = primitive.NewDateTimeFromTime(t)
		}
	}

	return bson.M{"$or": []bson.M{
		{sortField: bson.M{"$lt": boundary}},
		{sortField: boundary, "_id": bson.M{"$lt": lastID}},
	}}
}

// commonSearchFields is always unioned with the dynamically detected field
// set, so search still works when the sampled document is unrepresentative
var commonSearchFields = []string{
	"name", "title", "description", "email", "username",
	"role", "status", "address", "phone",
}

// buildSearchCondition builds a disjunction of per-field contains conditions.
// Text fields get a case-insensitive quoted-regex match; when the term parses
// as a number, equality conditions on detected numeric fields join the same
// disjunction.
func buildSearchCondition(term string, sample bson.M) bson.M {
	fields := DetectSearchableFields(sample)
	for _, name := range commonSearchFields {
		if _, exists := fields[name]; !exists {
			fields[name] = "string"
		}
	}

	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	pattern := regexp.QuoteMeta(term)
	numeric, isNumeric := parseNumericTerm(term)

	conditions := make([]bson.M, 0, len(paths))
	for _, path := range paths {
		switch fields[path] {
		case "number":
			if isNumeric {
				conditions = append(conditions, bson.M{path: numeric})
			}
		default:
			conditions = append(conditions, bson.M{path: bson.M{"$regex": pattern, "$options": "i"}})
		}
	}

	if len(conditions) == 0 {
		return nil
	}
	return bson.M{"$or": conditions}
}

func parseNumericTerm(term string) (float64, bool) {
	n, err := strconv.ParseFloat(term, 64)
	return n, err == nil
}

// DetectSearchableFields walks one sample document and reports its scalar
// field paths (strings, numbers, dates, recursively), skipping extended-type
// values that cannot carry a text match.
func DetectSearchableFields(sample bson.M) map[string]string {
	fields := make(map[string]string)
	detectSearchable(sample, "", fields)
	return fields
}

func detectSearchable(doc bson.M, prefix string, fields map[string]string) {
	for key, value := range doc {
		if key == "_id" && prefix == "" {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			fields[path] = "string"
		case bool:
			fields[path] = "string"
		case int, int32, int64, float32, float64:
			fields[path] = "number"
		case primitive.DateTime, time.Time:
			fields[path] = "date"
		case bson.M:
			detectSearchable(v, path, fields)
		case bson.D:
			detectSearchable(v.Map(), path, fields)
		}
	}
}

// CursorFromDocument builds the next-page cursor from the last row of the
// current page: its createdAt (transport time string or null) and the string
// form of its identifier.
func CursorFromDocument(doc bson.D) *Cursor {
	c := &Cursor{}
	for _, elem := range doc {
		switch elem.Key {
		case sortField:
			switch v := elem.Value.(type) {
			case primitive.DateTime:
				s := v.Time().UTC().Format(transportTimeFormat)
				c.CreatedAt = &s
				c.CreatedAtIsDate = true
			case time.Time:
				s := v.UTC().Format(transportTimeFormat)
				c.CreatedAt = &s
				c.CreatedAtIsDate = true
			case string:
				s := v
				c.CreatedAt = &s
			}
		case "_id":
			c.LastID = FormatDocumentID(elem.Value)
		}
	}
	return c
}
