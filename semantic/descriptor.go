// Package semantic defines the descriptor vocabulary shared by every
// resolution component and derives canonical keys from descriptor pairs.
//
// A semantic key is deterministic: two descriptor pairs whose reduced
// fields (type label, entity, simplified schema, ordered component types)
// agree produce byte-identical keys. Exact cache hits ride on that
// property; everything fuzzier goes through KeySimilarity or the oracle.
package semantic

// Descriptor describes what a module's data means, independent of its
// shape on the wire. Ephemeral descriptors are built from live values at
// resolution time; registered modules may supply richer ones. A
// descriptor is treated as immutable once handed to a resolution call.
type Descriptor struct {
	EntityType   string                   `json:"entityType"`
	Description  string                   `json:"description,omitempty"`
	Attributes   map[string]AttributeSpec `json:"attributes,omitempty"`
	Capabilities []string                 `json:"capabilities,omitempty"`
	Metadata     map[string]any           `json:"metadata,omitempty"`

	// Components is set when this descriptor wraps component descriptors,
	// e.g. a composite record assembled from several sources.
	Components []Descriptor `json:"components,omitempty"`
}

// AttributeSpec describes a single attribute of an entity. Type is the
// declared type when the module registered one; Value carries a runtime
// sample on ephemeral descriptors built from live data.
type AttributeSpec struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Value       any    `json:"value,omitempty"`
}
