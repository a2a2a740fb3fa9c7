package dbmanager

import (
	"context"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReferenceOptions bounds the enrichment pass so the guesswork cannot fan out
// across an entire deployment
type ReferenceOptions struct {
	MaxProbes int
	MaxDepth  int
}

// DefaultReferenceOptions returns the default probe bounds
func DefaultReferenceOptions() ReferenceOptions {
	return ReferenceOptions{MaxProbes: 25, MaxDepth: 3}
}

// ReferenceResult reports the resolved target documents keyed by field path.
// Unresolved references are a count, never an error: resolution is
// best-effort enrichment, not part of the primary read path.
type ReferenceResult struct {
	References map[string]*TaggedDoc `json:"references"`
	Unresolved int                   `json:"unresolved"`
}

// referenceSuffixes are stripped from a field name to guess the target
// collection, longest first
var referenceSuffixes = []string{"References", "Reference", "Refs", "Ref", "Ids", "Id"}

// ResolveReferences attempts to resolve every object-id value outside the
// identifying field into its likely target document. Target collections are
// guessed from the field name; when no guess matches, the remaining
// collections of the database are probed until the probe budget runs out.
func ResolveReferences(ctx context.Context, db *mongo.Database, doc bson.D, opts ReferenceOptions) (*ReferenceResult, error) {
	if opts.MaxProbes <= 0 {
		opts = DefaultReferenceOptions()
	}

	refs := make(map[string]primitive.ObjectID)
	collectObjectIDs(doc, "", 0, opts.MaxDepth, refs)

	result := &ReferenceResult{References: make(map[string]*TaggedDoc)}
	if len(refs) == 0 {
		return result, nil
	}

	allCollections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, NewStoreError("failed to list collections", err)
	}
	known := make(map[string]bool, len(allCollections))
	for _, name := range allCollections {
		known[name] = true
	}

	probes := 0
	for path, oid := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if probes >= opts.MaxProbes {
			result.Unresolved++
			continue
		}

		fieldName := path
		if idx := strings.LastIndex(path, "."); idx != -1 {
			fieldName = path[idx+1:]
		}

		candidates := CandidateCollections(fieldName)
		tried := make(map[string]bool, len(candidates))
		resolved := false

		for _, name := range candidates {
			if !known[name] || tried[name] || probes >= opts.MaxProbes {
				continue
			}
			tried[name] = true
			probes++
			if target := probeCollection(ctx, db, name, oid); target != nil {
				result.References[path] = target
				resolved = true
				break
			}
		}

		// name-based guesses failed, probe everything else
		if !resolved {
			for _, name := range allCollections {
				if tried[name] || probes >= opts.MaxProbes {
					continue
				}
				tried[name] = true
				probes++
				if target := probeCollection(ctx, db, name, oid); target != nil {
					result.References[path] = target
					resolved = true
					break
				}
			}
		}

		if !resolved {
			result.Unresolved++
		}
	}

	log.Printf("ReferenceResolver -> ResolveReferences -> Resolved %d of %d references in %d probes",
		len(result.References), len(refs), probes)
	return result, nil
}

func probeCollection(ctx context.Context, db *mongo.Database, name string, oid primitive.ObjectID) *TaggedDoc {
	var target bson.D
	err := db.Collection(name).FindOne(ctx, bson.M{"_id": oid}).Decode(&target)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			log.Printf("ReferenceResolver -> probeCollection -> Error probing %s: %v", name, err)
		}
		return nil
	}
	return SerializeDocument(target)
}

// collectObjectIDs gathers object-id values by field path, excluding the
// identifying field and stopping at maxDepth
func collectObjectIDs(doc bson.D, prefix string, depth, maxDepth int, out map[string]primitive.ObjectID) {
	if depth >= maxDepth {
		return
	}
	for _, elem := range doc {
		if prefix == "" && elem.Key == "_id" {
			continue
		}
		path := elem.Key
		if prefix != "" {
			path = prefix + "." + elem.Key
		}
		switch v := elem.Value.(type) {
		case primitive.ObjectID:
			out[path] = v
		case bson.D:
			collectObjectIDs(v, path, depth+1, maxDepth, out)
		}
	}
}

// CandidateCollections guesses the collections a reference field points at:
// the field name minus a reference suffix, in literal, pluralized and
// singularized forms, plus their lowercase variants.
func CandidateCollections(fieldName string) []string {
	base := fieldName
	for _, suffix := range referenceSuffixes {
		if strings.HasSuffix(base, suffix) && len(base) > len(suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}

	forms := []string{base, pluralize(base), singularize(base)}
	seen := make(map[string]bool, len(forms)*2)
	candidates := make([]string, 0, len(forms)*2)
	for _, form := range forms {
		for _, name := range []string{form, strings.ToLower(form)} {
			if name != "" && !seen[name] {
				seen[name] = true
				candidates = append(candidates, name)
			}
		}
	}
	return candidates
}

func pluralize(name string) string {
	switch {
	case name == "":
		return name
	case strings.HasSuffix(name, "s"):
		return name
	case strings.HasSuffix(name, "y") && len(name) > 1 && !isVowel(name[len(name)-2]):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}

func singularize(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss"):
		return name[:len(name)-1]
	default:
		return name
	}
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}
