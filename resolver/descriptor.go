package resolver

import (
	"fmt"

	"github.com/teranos/concord/semantic"
)

// DescribeRuntime builds an ephemeral descriptor for data observed from a
// module at runtime. The module id becomes the entity type and, when the
// data is an object, its top-level fields become attributes typed by their
// live values. Non-object payloads yield a bare descriptor, so two scalar
// payloads from the same module share a cache key.
func DescribeRuntime(moduleID string, data any) *semantic.Descriptor {
	d := &semantic.Descriptor{
		EntityType:  moduleID,
		Description: fmt.Sprintf("runtime data observed from module %s", moduleID),
	}

	fields, ok := data.(map[string]any)
	if !ok || len(fields) == 0 {
		return d
	}

	d.Attributes = make(map[string]semantic.AttributeSpec, len(fields))
	for name, value := range fields {
		d.Attributes[name] = semantic.AttributeSpec{
			Type:  semantic.RuntimeKind(value),
			Value: value,
		}
	}
	return d
}
