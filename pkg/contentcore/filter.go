package contentcore

import "strings"

// Filter is a recursive query-operator tree over field-keyed conditions.
// Leaves are literal values or operator objects; the root combinators are
// $and and $or.
type Filter = map[string]any

// Operators allowed in a Filter. Anything else starting with the operator
// sigil is rejected before it can reach a storage backend.
var allowedFilterOps = map[string]bool{
	"$and":          true,
	"$or":           true,
	"$eq":           true,
	"$ne":           true,
	"$gt":           true,
	"$gte":          true,
	"$lt":           true,
	"$lte":          true,
	"$in":           true,
	"$nin":          true,
	"$exists":       true,
	"$contains":     true,
	"$containsi":    true,
	"$notContains":  true,
	"$notContainsi": true,
}

// ValidateFilter reports whether every $-prefixed key in the tree, at any
// depth, is in the fixed operator allow-list. Non-operator keys are assumed
// to be field names; their values are recursed into if they are containers.
func ValidateFilter(filter Filter) bool {
	return checkFilterOps(filter)
}

func checkFilterOps(v any) bool {
	switch props := v.(type) {
	case map[string]any:
		for key, prop := range props {
			if strings.HasPrefix(key, "$") && !allowedFilterOps[key] {
				return false
			}
			if !checkFilterOps(prop) {
				return false
			}
		}
	case []any:
		for _, item := range props {
			if !checkFilterOps(item) {
				return false
			}
		}
	}
	return true
}
