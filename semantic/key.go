package semantic

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"reflect"
	"time"
)

// reducedFields is the projection of a descriptor that participates in key
// derivation. Field order is fixed and json.Marshal emits map keys sorted,
// so identical projections fingerprint to identical bytes. Attribute
// values, descriptions, and capabilities are deliberately excluded: they
// vary between live samples of the same entity.
type reducedFields struct {
	Type       string            `json:"type"`
	Entity     string            `json:"entity"`
	Schema     map[string]string `json:"schema,omitempty"`
	Components []string          `json:"components,omitempty"`
}

// MakeKey derives the canonical cache key for a source/target pair:
//
//	srcType:srcFingerprint#tgtType:tgtFingerprint
//
// It is total. On any internal failure it returns a unique fallback key
// instead of an error; fallback keys never repeat, so a lookup with one
// can only miss.
func MakeKey(source, target *Descriptor) string {
	srcLabel, srcFP, err := fingerprint(source)
	if err != nil {
		return fallbackKey()
	}
	tgtLabel, tgtFP, err := fingerprint(target)
	if err != nil {
		return fallbackKey()
	}
	return srcLabel + ":" + srcFP + "#" + tgtLabel + ":" + tgtFP
}

// fingerprint reduces a descriptor to its type label and stable JSON
// fingerprint. A nil descriptor reduces the same way an empty one does.
func fingerprint(d *Descriptor) (string, string, error) {
	label := TypeLabel(d)

	reduced := reducedFields{Type: label}
	if d != nil {
		reduced.Entity = d.EntityType

		if len(d.Attributes) > 0 {
			schema := make(map[string]string, len(d.Attributes))
			for name, spec := range d.Attributes {
				if spec.Type != "" {
					schema[name] = spec.Type
				} else {
					schema[name] = RuntimeKind(spec.Value)
				}
			}
			reduced.Schema = schema
		}

		for _, comp := range d.Components {
			reduced.Components = append(reduced.Components, comp.EntityType)
		}
	}

	data, err := json.Marshal(reduced)
	if err != nil {
		return "", "", err
	}
	return label, string(data), nil
}

// TypeLabel extracts the label used on both sides of the key. Metadata
// wins over the declared entity type so registrations can alias entities
// without changing their schema. Mapping registries key on the same label.
func TypeLabel(d *Descriptor) string {
	if d == nil {
		return "unknown"
	}
	if v, ok := d.Metadata["type"].(string); ok && v != "" {
		return v
	}
	if v, ok := d.Metadata["entity"].(string); ok && v != "" {
		return v
	}
	if d.EntityType != "" {
		return d.EntityType
	}
	return "unknown"
}

// RuntimeKind names the JSON kind of a live value. Fingerprints use it for
// attributes without a declared type, and runtime descriptors declare
// attribute types with it, so both construction paths share one vocabulary.
func RuntimeKind(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}

	// Values that did not come through encoding/json.
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Pointer:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return "null"
		}
		return RuntimeKind(rv.Elem().Interface())
	default:
		return "unknown"
	}
}

// fallbackKey returns a key for pairs that cannot be fingerprinted.
func fallbackKey() string {
	return fmt.Sprintf("fallback:%d:%d", time.Now().UnixNano(), rand.Int63())
}
