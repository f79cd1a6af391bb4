package template

import "fmt"

// KeyKind distinguishes what a Key addresses.
type KeyKind uint8

const (
	// KeyTemplate addresses a push-subscribed template.
	KeyTemplate KeyKind = iota

	// KeyEval addresses a one-shot evaluation cached by template text.
	KeyEval

	// KeyInfoEntity marks an info row that shows an entity directly rather
	// than an evaluated expression.
	KeyInfoEntity

	// KeyStateText marks a row that shows the entity's state text.
	KeyStateText
)

func (k KeyKind) String() string {
	switch k {
	case KeyTemplate:
		return "template"
	case KeyEval:
		return "eval"
	case KeyInfoEntity:
		return "info_entity"
	case KeyStateText:
		return "state_text"
	default:
		return "unknown"
	}
}

// Key identifies one value held by a Service. Keys compare structurally, so
// group and id values can never collide the way concatenated strings can.
type Key struct {
	Kind  KeyKind
	Group string
	ID    string
}

// TemplateKey returns the key of a subscribed template owned by an element
// (id) within a group.
func TemplateKey(group, id string) Key {
	return Key{Kind: KeyTemplate, Group: group, ID: id}
}

// EvalKey returns the one-shot cache key for a template.
func EvalKey(template string) Key {
	return Key{Kind: KeyEval, ID: template}
}

// InfoEntityKey returns the marker key for an entity info row.
func InfoEntityKey(group, entityID string) Key {
	return Key{Kind: KeyInfoEntity, Group: group, ID: entityID}
}

// StateTextKey returns the marker key for a state text row.
func StateTextKey(group, entityID string) Key {
	return Key{Kind: KeyStateText, Group: group, ID: entityID}
}

// IsMarker reports whether the key denotes a marker rather than an
// evaluated expression.
func (k Key) IsMarker() bool {
	return k.Kind == KeyInfoEntity || k.Kind == KeyStateText
}

func (k Key) String() string {
	if k.Group == "" {
		return fmt.Sprintf("%s:%s", k.Kind, k.ID)
	}
	return fmt.Sprintf("%s:%s/%s", k.Kind, k.Group, k.ID)
}
