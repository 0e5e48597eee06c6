// Package capability defines the pluggable derivations the client core
// relies on: raw-BG reconstruction, delta computation, trend direction,
// staleness classification and error-code display. Each capability is an
// interface with one canonical implementation, looked up through a typed
// registry.
package capability

// Registry holds one implementation per capability.
type Registry struct {
	RawBG      RawBG
	Delta      Delta
	Direction  Direction
	Staleness  Staleness
	ErrorCodes ErrorCodes
}

// Defaults returns a registry with the canonical implementations.
func Defaults() *Registry {
	return &Registry{
		RawBG:      RawBGCalc{},
		Delta:      DeltaCalc{},
		Direction:  DirectionInfo{},
		Staleness:  StalenessCheck{},
		ErrorCodes: CodeTable{},
	}
}
