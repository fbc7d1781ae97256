package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/integrationos/gateway/internal/app/ports"
)

// ErrUnsupportedUpdate is returned for update documents the store cannot apply.
var ErrUnsupportedUpdate = errors.New("unsupported update document")

// ErrUnsupportedFilter is returned for filter values that are not scalars.
var ErrUnsupportedFilter = errors.New("unsupported filter value")

type document map[string]any

func toDocument(record any) (document, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	doc := document{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("record is not a json object: %w", err)
	}
	return doc, nil
}

// whereClause renders filter as equality predicates over the document body.
func whereClause(collection ports.Collection, filter ports.Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection.String()}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, err := filterValue(filter[key])
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s", err, key)
		}
		if key == "_id" && value != nil {
			clauses = append(clauses, "id = ?")
			args = append(args, fmt.Sprint(value))
			continue
		}
		if value == nil {
			clauses = append(clauses, "json_extract(body, ?) IS NULL")
			args = append(args, jsonPath(key))
			continue
		}
		clauses = append(clauses, "json_extract(body, ?) = ?")
		args = append(args, jsonPath(key), value)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func filterValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, int64, float64:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.String:
			return rv.String(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Bool:
			return filterValue(rv.Bool())
		default:
			return nil, ErrUnsupportedFilter
		}
	}
}

func jsonPath(key string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, segment := range strings.Split(key, ".") {
		b.WriteString(".")
		b.WriteString(strconv.Quote(segment))
	}
	return b.String()
}

// seedDocument builds the document an upsert starts from: the filter's equality fields.
func seedDocument(filter ports.Filter) document {
	doc := document{}
	for key, value := range filter {
		if strings.HasPrefix(key, "$") {
			continue
		}
		_ = setPath(doc, key, normalise(value))
	}
	return doc
}

type updateOps struct {
	set         map[string]any
	inc         map[string]any
	setOnInsert map[string]any
	unset       map[string]any
}

func parseUpdate(update ports.Update) (updateOps, error) {
	ops := updateOps{}
	if len(update) == 0 {
		return ops, fmt.Errorf("%w: empty", ErrUnsupportedUpdate)
	}
	for operator, raw := range update {
		fields, ok := asFields(raw)
		if !ok {
			return ops, fmt.Errorf("%w: %s must be a document", ErrUnsupportedUpdate, operator)
		}
		switch operator {
		case "$set":
			ops.set = fields
		case "$inc":
			ops.inc = fields
		case "$setOnInsert":
			ops.setOnInsert = fields
		case "$unset":
			ops.unset = fields
		default:
			return ops, fmt.Errorf("%w: operator %q", ErrUnsupportedUpdate, operator)
		}
	}
	return ops, nil
}

func (ops updateOps) apply(doc document, inserting bool) error {
	for key, value := range ops.set {
		if err := setPath(doc, key, normalise(value)); err != nil {
			return err
		}
	}
	if inserting {
		for key, value := range ops.setOnInsert {
			if err := setPath(doc, key, normalise(value)); err != nil {
				return err
			}
		}
	}
	for key, value := range ops.inc {
		delta, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%w: $inc %s is not numeric", ErrUnsupportedUpdate, key)
		}
		current, _ := getPath(doc, key)
		base := 0.0
		if current != nil {
			base, ok = toFloat(current)
			if !ok {
				return fmt.Errorf("%w: $inc target %s is not numeric", ErrUnsupportedUpdate, key)
			}
		}
		if err := setPath(doc, key, base+delta); err != nil {
			return err
		}
	}
	for key := range ops.unset {
		unsetPath(doc, key)
	}
	return nil
}

func asFields(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case ports.Update:
		return v, true
	case ports.Filter:
		return v, true
	default:
		return nil, false
	}
}

// normalise converts value to its JSON object-model form so stored bodies stay uniform.
func normalise(value any) any {
	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return value
	}
	return out
}

func getPath(doc document, key string) (any, bool) {
	var current any = map[string]any(doc)
	for _, segment := range strings.Split(key, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(doc document, key string, value any) error {
	segments := strings.Split(key, ".")
	node := map[string]any(doc)
	for _, segment := range segments[:len(segments)-1] {
		next, exists := node[segment]
		if !exists || next == nil {
			child := map[string]any{}
			node[segment] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s traverses a non-document field", ErrUnsupportedUpdate, key)
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
	return nil
}

func unsetPath(doc document, key string) {
	segments := strings.Split(key, ".")
	node := map[string]any(doc)
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segments[len(segments)-1])
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
