package codex

import "strings"

// Kind is the entity-type tag vocabulary used across the wiki/codex.
// The set is open but bounded: unknown tags parse to KindOther.
type Kind string

const (
	KindCharacter    Kind = "CHARACTER"
	KindLocation     Kind = "LOCATION"
	KindItem         Kind = "ITEM"
	KindLore         Kind = "LORE"
	KindCulture      Kind = "CULTURE"
	KindCreature     Kind = "CREATURE"
	KindRace         Kind = "RACE"
	KindOrganization Kind = "ORGANIZATION"
	KindEvent        Kind = "EVENT"
	KindOther        Kind = "OTHER"
)

// DefaultKinds returns the full default entity-type set for new settings.
func DefaultKinds() []Kind {
	return []Kind{
		KindCharacter,
		KindLocation,
		KindItem,
		KindLore,
		KindCulture,
		KindCreature,
		KindRace,
		KindOrganization,
		KindEvent,
	}
}

// ParseKind maps a string tag to a Kind, tolerating common synonyms.
func ParseKind(s string) Kind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CHARACTER", "NPC", "PERSON":
		return KindCharacter
	case "LOCATION", "PLACE":
		return KindLocation
	case "ITEM", "OBJECT", "ARTIFACT":
		return KindItem
	case "LORE", "CONCEPT":
		return KindLore
	case "CULTURE":
		return KindCulture
	case "CREATURE", "MONSTER":
		return KindCreature
	case "RACE", "SPECIES":
		return KindRace
	case "ORGANIZATION", "FACTION", "GUILD":
		return KindOrganization
	case "EVENT":
		return KindEvent
	default:
		return KindOther
	}
}

// Label returns the lowercased human-readable form used in notifications.
func (k Kind) Label() string {
	return strings.ToLower(string(k))
}
