package dbmanager

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultSchemaSampleSize bounds how many documents are sampled per request
const DefaultSchemaSampleSize = 100

// maxEnumValues is the largest allowed-value set a string field may have and
// still be reported as an enum
const maxEnumValues = 10

// enumCoverageThreshold is the share of string occurrences that must come
// from the repeated-value set for enum classification
const enumCoverageThreshold = 0.8

// maxSchemaExamples caps the example values reported per field
const maxSchemaExamples = 3

// FieldSchema is the inferred, advisory shape of one field. It drives the
// client's dynamic edit form and is never enforced against writes.
type FieldSchema struct {
	Type       string                  `json:"type"`
	Nullable   bool                    `json:"nullable"`
	Presence   float64                 `json:"presence"`
	Examples   []interface{}           `json:"examples,omitempty"`
	EnumValues []string                `json:"enumValues,omitempty"`
	Min        *float64                `json:"min,omitempty"`
	Max        *float64                `json:"max,omitempty"`
	ItemType   string                  `json:"itemType,omitempty"`
	Fields     map[string]*FieldSchema `json:"fields,omitempty"`
}

// SchemaResult is the point-in-time schema approximation for one collection
type SchemaResult struct {
	Fields     map[string]*FieldSchema `json:"fields"`
	IsEmpty    bool                    `json:"isEmpty"`
	SampleSize int                     `json:"sampleSize"`
}

// typePriority is the fixed resolution order: the highest-populated bucket
// wins and ties resolve to the earlier entry.
var typePriority = []string{"string", "number", "boolean", "date", "array", "object"}

// fieldStats accumulates observations for one flattened field path
type fieldStats struct {
	present      int
	nulls        int
	buckets      map[string]int
	stringCounts map[string]int
	examples     []interface{}
	min          float64
	max          float64
	hasNumeric   bool
	itemTypes    map[string]int
}

func newFieldStats() *fieldStats {
	return &fieldStats{
		buckets:      make(map[string]int),
		stringCounts: make(map[string]int),
		itemTypes:    make(map[string]int),
	}
}

// InferSchema samples up to sampleSize documents from the collection and
// derives a best-effort field-type map. The identifying field is excluded
// from analysis. An empty collection is not an error: the caller falls back
// to unstructured editing.
func InferSchema(ctx context.Context, coll *mongo.Collection, sampleSize int) (*SchemaResult, error) {
	if sampleSize <= 0 || sampleSize > 1000 {
		sampleSize = DefaultSchemaSampleSize
	}

	opts := options.Find().SetLimit(int64(sampleSize))
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, NewStoreError("failed to sample documents", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, NewStoreError("failed to decode sampled documents", err)
	}

	log.Printf("SchemaInferencer -> InferSchema -> Sampled %d documents from %s", len(docs), coll.Name())
	return inferFromSample(docs), nil
}

// inferFromSample runs the full inference over an in-memory sample
func inferFromSample(docs []bson.M) *SchemaResult {
	if len(docs) == 0 {
		return &SchemaResult{Fields: make(map[string]*FieldSchema), IsEmpty: true}
	}

	stats := make(map[string]*fieldStats)
	for _, doc := range docs {
		accumulateDocument(doc, "", stats)
	}

	resolved := make(map[string]*FieldSchema, len(stats))
	for path, s := range stats {
		resolved[path] = resolveField(s, len(docs))
	}

	return &SchemaResult{
		Fields:     rebuildTree(resolved),
		IsEmpty:    false,
		SampleSize: len(docs),
	}
}

// accumulateDocument walks one document, flattening nested documents into
// dot-joined field paths. The identifying field is skipped at top level.
func accumulateDocument(doc bson.M, prefix string, stats map[string]*fieldStats) {
	for key, value := range doc {
		if prefix == "" && key == "_id" {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		s, exists := stats[path]
		if !exists {
			s = newFieldStats()
			stats[path] = s
		}
		s.present++

		observeValue(s, value)

		switch nested := value.(type) {
		case bson.M:
			accumulateDocument(nested, path, stats)
		case bson.D:
			accumulateDocument(nested.Map(), path, stats)
		}
	}
}

// observeValue files one value into the stats buckets
func observeValue(s *fieldStats, value interface{}) {
	switch v := value.(type) {
	case nil, primitive.Null:
		s.nulls++
	case string:
		if looksLikeDate(v) {
			s.buckets["date"]++
		} else {
			s.buckets["string"]++
			s.stringCounts[v]++
		}
		s.addExample(v)
	case bool:
		s.buckets["boolean"]++
		s.addExample(v)
	case int, int32, int64, float32, float64:
		s.buckets["number"]++
		n := toFloat64(v)
		if !s.hasNumeric || n < s.min {
			s.min = n
		}
		if !s.hasNumeric || n > s.max {
			s.max = n
		}
		s.hasNumeric = true
		s.addExample(v)
	case primitive.Decimal128:
		s.buckets["number"]++
		s.addExample(v.String())
	case primitive.DateTime:
		s.buckets["date"]++
		s.addExample(v.Time().UTC().Format(transportTimeFormat))
	case time.Time:
		s.buckets["date"]++
		s.addExample(v.UTC().Format(transportTimeFormat))
	case primitive.A:
		s.buckets["array"]++
		for _, item := range v {
			s.itemTypes[valueTypeTag(item)]++
		}
	case []interface{}:
		s.buckets["array"]++
		for _, item := range v {
			s.itemTypes[valueTypeTag(item)]++
		}
	case bson.M, bson.D:
		s.buckets["object"]++
	case primitive.ObjectID:
		s.buckets["string"]++
		s.stringCounts[v.Hex()]++
		s.addExample(v.Hex())
	default:
		s.buckets["string"]++
	}
}

func (s *fieldStats) addExample(value interface{}) {
	if len(s.examples) >= maxSchemaExamples {
		return
	}
	for _, existing := range s.examples {
		if existing == value {
			return
		}
	}
	s.examples = append(s.examples, value)
}

// resolveField turns accumulated stats into a reported FieldSchema
func resolveField(s *fieldStats, totalDocs int) *FieldSchema {
	bestType := "string"
	bestCount := -1
	for _, t := range typePriority {
		if s.buckets[t] > bestCount {
			bestType = t
			bestCount = s.buckets[t]
		}
	}

	field := &FieldSchema{
		Type:     bestType,
		Nullable: s.nulls > 0,
		Presence: float64(s.present) / float64(totalDocs),
		Examples: s.examples,
	}

	if bestType == "string" {
		if values, ok := detectEnum(s.stringCounts); ok {
			field.Type = "enum"
			field.EnumValues = values
		}
	}

	if bestType == "number" && s.hasNumeric {
		min, max := s.min, s.max
		field.Min = &min
		field.Max = &max
	}

	if bestType == "array" {
		field.ItemType = dominantItemType(s.itemTypes)
	}

	return field
}

// detectEnum reports whether a string field qualifies as an enum: the values
// seen more than once form a set of at most maxEnumValues members covering at
// least enumCoverageThreshold of all string occurrences.
func detectEnum(counts map[string]int) ([]string, bool) {
	total := 0
	repeated := make([]string, 0)
	covered := 0
	for value, count := range counts {
		total += count
		if count > 1 {
			repeated = append(repeated, value)
			covered += count
		}
	}

	if total == 0 || len(repeated) == 0 || len(repeated) > maxEnumValues {
		return nil, false
	}
	if float64(covered)/float64(total) < enumCoverageThreshold {
		return nil, false
	}

	sort.Strings(repeated)
	return repeated, true
}

func dominantItemType(itemTypes map[string]int) string {
	best := ""
	bestCount := 0
	tags := make([]string, 0, len(itemTypes))
	for tag := range itemTypes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		if itemTypes[tag] > bestCount {
			best = tag
			bestCount = itemTypes[tag]
		}
	}
	return best
}

// rebuildTree reassembles flat dot-paths into the nested fields tree the form
// renderer consumes. When a deeper path arrives under a previously-resolved
// leaf, the leaf becomes an object node and its prior classification is
// discarded (last write wins; this is advisory schema, not enforced).
func rebuildTree(flat map[string]*FieldSchema) map[string]*FieldSchema {
	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}
	// shallow paths first so parents exist before children
	sort.Slice(paths, func(i, j int) bool {
		di := strings.Count(paths[i], ".")
		dj := strings.Count(paths[j], ".")
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})

	root := make(map[string]*FieldSchema)
	for _, path := range paths {
		parts := strings.Split(path, ".")
		current := root
		for i, part := range parts {
			last := i == len(parts)-1
			node, exists := current[part]
			if last {
				field := flat[path]
				if exists && node.Fields != nil {
					// a deeper path already forced this into an object;
					// keep the children, adopt the object classification
					field = &FieldSchema{
						Type:     "object",
						Nullable: field.Nullable,
						Presence: field.Presence,
						Fields:   node.Fields,
					}
				}
				current[part] = field
				continue
			}

			if !exists || node.Fields == nil {
				converted := &FieldSchema{Type: "object", Fields: make(map[string]*FieldSchema)}
				if exists {
					converted.Presence = node.Presence
					converted.Nullable = node.Nullable
				}
				current[part] = converted
				node = converted
			}
			current = node.Fields
		}
	}
	return root
}

// valueTypeTag names the type of one value, used for array element tags
func valueTypeTag(value interface{}) string {
	switch v := value.(type) {
	case nil, primitive.Null:
		return "null"
	case string:
		if looksLikeDate(v) {
			return "date"
		}
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, float32, float64, primitive.Decimal128:
		return "number"
	case primitive.DateTime, time.Time:
		return "date"
	case primitive.ObjectID:
		return "objectId"
	case primitive.A, []interface{}:
		return "array"
	case bson.M, bson.D:
		return "object"
	case primitive.Binary:
		return "binary"
	default:
		return "string"
	}
}

// dateLayouts are the string shapes counted into the date bucket
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

func looksLikeDate(s string) bool {
	if len(s) < 8 || len(s) > 35 {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func toFloat64(value interface{}) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
