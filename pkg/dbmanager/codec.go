package dbmanager

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tag keys of the transport representation. A value crossing the transport
// boundary is either a JSON primitive or a single-key object with one of
// these keys; tags are recognized by key name only.
const (
	tagObjectID  = "$oid"
	tagDate      = "$date"
	tagLong      = "$numberLong"
	tagDecimal   = "$numberDecimal"
	tagBinary    = "$binary"
	tagTimestamp = "$timestamp"
)

// transportTimeFormat is RFC 3339 with millisecond precision, matching the
// precision of the store's native date type.
const transportTimeFormat = "2006-01-02T15:04:05.000Z"

// Serialize converts a native store value into its transport form. Recognized
// extended types become single-key tagged objects; primitives pass through;
// anything unrecognized is serialized as-is (lossy fallback, not an error).
func Serialize(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case primitive.Null:
		return nil
	case bson.D:
		doc := NewTaggedDoc()
		for _, elem := range v {
			doc.Set(elem.Key, Serialize(elem.Value))
		}
		return doc
	case bson.M:
		return serializeUnorderedMap(v)
	case map[string]interface{}:
		return serializeUnorderedMap(v)
	case primitive.A:
		return serializeArray(v)
	case []interface{}:
		return serializeArray(v)
	case primitive.ObjectID:
		return map[string]interface{}{tagObjectID: v.Hex()}
	case primitive.DateTime:
		return map[string]interface{}{tagDate: v.Time().UTC().Format(transportTimeFormat)}
	case time.Time:
		return map[string]interface{}{tagDate: v.UTC().Format(transportTimeFormat)}
	case int64:
		return map[string]interface{}{tagLong: strconv.FormatInt(v, 10)}
	case primitive.Decimal128:
		return map[string]interface{}{tagDecimal: v.String()}
	case primitive.Binary:
		return map[string]interface{}{tagBinary: map[string]interface{}{
			"base64":  base64.StdEncoding.EncodeToString(v.Data),
			"subType": fmt.Sprintf("%02x", v.Subtype),
		}}
	case primitive.Timestamp:
		return map[string]interface{}{tagTimestamp: map[string]interface{}{
			"t": v.T,
			"i": v.I,
		}}
	case int:
		return v
	case int32:
		return v
	case float64, float32, bool, string:
		return v
	default:
		return v
	}
}

// serializeUnorderedMap walks a map document key by key. The source carries no
// order, so keys are sorted for a stable output.
func serializeUnorderedMap(m map[string]interface{}) *TaggedDoc {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	doc := NewTaggedDoc()
	for _, key := range keys {
		doc.Set(key, Serialize(m[key]))
	}
	return doc
}

func serializeArray(arr []interface{}) []interface{} {
	out := make([]interface{}, len(arr))
	for i, item := range arr {
		out[i] = Serialize(item)
	}
	return out
}

// Parse converts a transport value back into its native store form. A
// malformed tag value fails with ValueDecodeError rather than being coerced.
func Parse(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *TaggedDoc:
		if v.Len() == 1 {
			key := v.Keys()[0]
			raw, _ := v.Get(key)
			if native, tagged, err := parseTag(key, raw); err != nil {
				return nil, err
			} else if tagged {
				return native, nil
			}
		}
		doc := make(bson.D, 0, v.Len())
		for _, key := range v.Keys() {
			raw, _ := v.Get(key)
			native, err := Parse(raw)
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: key, Value: native})
		}
		return doc, nil
	case map[string]interface{}:
		if len(v) == 1 {
			for key, raw := range v {
				if native, tagged, err := parseTag(key, raw); err != nil {
					return nil, err
				} else if tagged {
					return native, nil
				}
			}
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		doc := make(bson.D, 0, len(v))
		for _, key := range keys {
			native, err := Parse(v[key])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: key, Value: native})
		}
		return doc, nil
	case []interface{}:
		arr := make(primitive.A, len(v))
		for i, item := range v {
			native, err := Parse(item)
			if err != nil {
				return nil, err
			}
			arr[i] = native
		}
		return arr, nil
	default:
		return v, nil
	}
}

// parseTag reconstructs a native value from a single-key tagged object. The
// second return value reports whether the key was a recognized tag; an
// unrecognized key falls through to plain-document parsing.
func parseTag(key string, raw interface{}) (interface{}, bool, error) {
	switch key {
	case tagObjectID:
		s, ok := raw.(string)
		if !ok {
			return nil, true, NewValueDecodeError("%s value must be a string, got %T", tagObjectID, raw)
		}
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, true, NewValueDecodeError("invalid object id %q: %v", s, err)
		}
		return oid, true, nil
	case tagDate:
		switch d := raw.(type) {
		case string:
			t, err := parseTransportTime(d)
			if err != nil {
				return nil, true, NewValueDecodeError("invalid date %q: %v", d, err)
			}
			return primitive.NewDateTimeFromTime(t), true, nil
		case float64:
			return primitive.DateTime(int64(d)), true, nil
		default:
			return nil, true, NewValueDecodeError("%s value must be a string or number, got %T", tagDate, raw)
		}
	case tagLong:
		s, ok := raw.(string)
		if !ok {
			return nil, true, NewValueDecodeError("%s value must be a string, got %T", tagLong, raw)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, true, NewValueDecodeError("invalid 64-bit integer %q: %v", s, err)
		}
		return n, true, nil
	case tagDecimal:
		s, ok := raw.(string)
		if !ok {
			return nil, true, NewValueDecodeError("%s value must be a string, got %T", tagDecimal, raw)
		}
		dec, err := primitive.ParseDecimal128(s)
		if err != nil {
			return nil, true, NewValueDecodeError("invalid decimal %q: %v", s, err)
		}
		return dec, true, nil
	case tagBinary:
		fields, err := tagFields(raw)
		if err != nil {
			return nil, true, NewValueDecodeError("invalid %s value: %v", tagBinary, err)
		}
		encoded, ok := fields["base64"].(string)
		if !ok {
			return nil, true, NewValueDecodeError("%s value must carry a base64 string", tagBinary)
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, true, NewValueDecodeError("invalid base64 payload: %v", err)
		}
		var subtype byte
		if s, ok := fields["subType"].(string); ok {
			parsed, err := strconv.ParseUint(s, 16, 8)
			if err != nil {
				return nil, true, NewValueDecodeError("invalid binary subtype %q: %v", s, err)
			}
			subtype = byte(parsed)
		}
		return primitive.Binary{Subtype: subtype, Data: data}, true, nil
	case tagTimestamp:
		fields, err := tagFields(raw)
		if err != nil {
			return nil, true, NewValueDecodeError("invalid %s value: %v", tagTimestamp, err)
		}
		t, err := tagUint32(fields["t"])
		if err != nil {
			return nil, true, NewValueDecodeError("invalid timestamp seconds: %v", err)
		}
		i, err := tagUint32(fields["i"])
		if err != nil {
			return nil, true, NewValueDecodeError("invalid timestamp ordinal: %v", err)
		}
		return primitive.Timestamp{T: t, I: i}, true, nil
	default:
		return nil, false, nil
	}
}

// tagFields normalizes the payload of a compound tag ($binary, $timestamp)
func tagFields(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil
	case *TaggedDoc:
		fields := make(map[string]interface{}, v.Len())
		for _, key := range v.Keys() {
			value, _ := v.Get(key)
			fields[key] = value
		}
		return fields, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}
}

func tagUint32(raw interface{}) (uint32, error) {
	switch v := raw.(type) {
	case float64:
		return uint32(v), nil
	case uint32:
		return v, nil
	case int:
		return uint32(v), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}
}

// parseTransportTime accepts the transport format plus a few common fallbacks
func parseTransportTime(s string) (time.Time, error) {
	formats := []string{
		transportTimeFormat,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02",
	}
	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// SerializeDocument converts a native document into its ordered transport form
func SerializeDocument(doc bson.D) *TaggedDoc {
	return Serialize(doc).(*TaggedDoc)
}

// ParseDocumentJSON parses a transport document from raw JSON, preserving
// field order and reconstructing extended types.
func ParseDocumentJSON(data []byte) (bson.D, error) {
	doc := NewTaggedDoc()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, NewValueDecodeError("invalid document JSON: %v", err)
	}
	native, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	parsed, ok := native.(bson.D)
	if !ok {
		return nil, NewValueDecodeError("document body must be an object, got %T", native)
	}
	return parsed, nil
}

// ParseFilter parses a raw filter query from its JSON text form
func ParseFilter(raw string) (bson.M, error) {
	if raw == "" {
		return bson.M{}, nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, NewValueDecodeError("invalid filter JSON: %v", err)
	}
	filter := make(bson.M, len(decoded))
	for key, value := range decoded {
		native, err := Parse(value)
		if err != nil {
			return nil, err
		}
		filter[key] = native
	}
	return filter, nil
}

// ParseDocumentID interprets a path identifier. Valid object-id hex becomes a
// native object id; anything else is used as a raw string so non-standard
// identifier types still match.
func ParseDocumentID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// FormatDocumentID renders a native identifier as its string form
func FormatDocumentID(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
