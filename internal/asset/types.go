package asset

import "strings"

// Asset types.
const (
	TypePlayer   = "player"
	TypeBoundary = "boundary"
	TypeEnemy    = "enemy"
	TypeTexture  = "texture"
	TypeNPC      = "npc"
	TypeObject   = "object"
	TypeArea     = "area"
	TypeMapAsset = "map_asset"
)

var knownTypes = map[string]struct{}{
	TypePlayer:   {},
	TypeBoundary: {},
	TypeEnemy:    {},
	TypeTexture:  {},
	TypeNPC:      {},
	TypeObject:   {},
	TypeArea:     {},
	TypeMapAsset: {},
}

// CanonicalType lowercases t and maps unknown types to object.
func CanonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if _, ok := knownTypes[t]; ok {
		return t
	}
	return TypeObject
}
