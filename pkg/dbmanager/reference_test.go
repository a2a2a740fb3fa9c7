package dbmanager

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCandidateCollections(t *testing.T) {
	cases := []struct {
		field    string
		expected []string
	}{
		{"userId", []string{"user", "users"}},
		{"authorRef", []string{"author", "authors"}},
		{"categoryId", []string{"category", "categories"}},
		{"ownerReference", []string{"owner", "owners"}},
		{"companies", []string{"companies", "company"}},
		{"team", []string{"team", "teams"}},
	}

	for _, tc := range cases {
		got := CandidateCollections(tc.field)
		for _, want := range tc.expected {
			if !containsString(got, want) {
				t.Fatalf("CandidateCollections(%q) = %v, missing %q", tc.field, got, want)
			}
		}
	}
}

// TestCandidateCollectionsSuffixOnly: a field that IS a suffix keeps its name
// instead of stripping down to nothing
func TestCandidateCollectionsSuffixOnly(t *testing.T) {
	got := CandidateCollections("Id")
	if len(got) == 0 {
		t.Fatal("Expected at least the literal form")
	}
	for _, name := range got {
		if name == "" {
			t.Fatalf("Empty candidate in %v", got)
		}
	}
	if !containsString(got, "Id") {
		t.Fatalf("Expected the literal field name, got %v", got)
	}
}

func TestCandidateCollectionsDeduplicated(t *testing.T) {
	got := CandidateCollections("users")
	seen := make(map[string]bool, len(got))
	for _, name := range got {
		if seen[name] {
			t.Fatalf("Duplicate candidate %q in %v", name, got)
		}
		seen[name] = true
	}
}

func TestCollectObjectIDs(t *testing.T) {
	self := mustObjectID(t, "507f1f77bcf86cd799439011")
	author := mustObjectID(t, "507f191e810c19729de860ea")
	editor := mustObjectID(t, "507f191e810c19729de860eb")

	doc := bson.D{
		{Key: "_id", Value: self},
		{Key: "authorId", Value: author},
		{Key: "title", Value: "hello"},
		{Key: "meta", Value: bson.D{
			{Key: "editorId", Value: editor},
		}},
	}

	out := make(map[string]primitive.ObjectID)
	collectObjectIDs(doc, "", 0, 3, out)

	expected := map[string]primitive.ObjectID{
		"authorId":      author,
		"meta.editorId": editor,
	}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("Expected %v, got %v", expected, out)
	}
}

func TestCollectObjectIDsDepthBound(t *testing.T) {
	deep := mustObjectID(t, "507f191e810c19729de860ea")
	doc := bson.D{
		{Key: "a", Value: bson.D{
			{Key: "b", Value: bson.D{
				{Key: "deepId", Value: deep},
			}},
		}},
	}

	out := make(map[string]primitive.ObjectID)
	collectObjectIDs(doc, "", 0, 2, out)
	if len(out) != 0 {
		t.Fatalf("Expected depth bound to exclude deep references, got %v", out)
	}

	out = make(map[string]primitive.ObjectID)
	collectObjectIDs(doc, "", 0, 3, out)
	if _, exists := out["a.b.deepId"]; !exists {
		t.Fatalf("Expected a.b.deepId within depth 3, got %v", out)
	}
}

func TestPluralizeSingularize(t *testing.T) {
	cases := []struct {
		in       string
		plural   string
		singular string
	}{
		{"user", "users", "user"},
		{"users", "users", "user"},
		{"category", "categories", "category"},
		{"categories", "categories", "category"},
		{"address", "address", "address"},
		{"day", "days", "day"},
	}
	for _, tc := range cases {
		if got := pluralize(tc.in); got != tc.plural {
			t.Fatalf("pluralize(%q): expected %q, got %q", tc.in, tc.plural, got)
		}
		if got := singularize(tc.in); got != tc.singular {
			t.Fatalf("singularize(%q): expected %q, got %q", tc.in, tc.singular, got)
		}
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
