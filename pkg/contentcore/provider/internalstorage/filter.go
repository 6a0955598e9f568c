package internalstorage

import (
	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

// toStoreFilter translates the universal operator set into the collection
// store's native dialect. The contains family becomes regex matching;
// everything else passes through unchanged.
func toStoreFilter(filter contentcore.Filter) docstore.Filter {
	return mapFilterNode(filter)
}

func mapFilterNode(node map[string]any) map[string]any {
	result := make(map[string]any, len(node))
	for key, value := range node {
		var target any
		switch typed := value.(type) {
		case map[string]any:
			target = mapFilterNode(typed)
		case []any:
			list := make([]any, len(typed))
			for i, item := range typed {
				if sub, ok := item.(map[string]any); ok {
					list[i] = mapFilterNode(sub)
				} else {
					list[i] = item
				}
			}
			target = list
		default:
			target = value
		}
		rewriteOperator(key, target, result)
	}
	return result
}

func rewriteOperator(op string, target any, parent map[string]any) {
	switch op {
	case "$contains":
		parent["$regex"] = target
	case "$containsi":
		parent["$regex"] = target
		parent["$options"] = "i"
	case "$notContains":
		parent["$not"] = map[string]any{"$regex": target}
	case "$notContainsi":
		parent["$not"] = map[string]any{"$regex": target, "$options": "i"}
	default:
		parent[op] = target
	}
}

func toStoreSort(sort []contentcore.SortField) []docstore.Sort {
	if len(sort) == 0 {
		return nil
	}
	result := make([]docstore.Sort, len(sort))
	for i, field := range sort {
		result[i] = docstore.Sort{Field: field.Field, Desc: field.Desc}
	}
	return result
}
