// internal/core/domain/enums.go
package domain

// Mode define el modo de ejecución del escaneo.
type Mode string

const (
	// ModePassive solo utiliza técnicas pasivas (OSINT, APIs públicas)
	ModePassive Mode = "passive"

	// ModeHybrid combina técnicas pasivas y activas
	ModeHybrid Mode = "hybrid"

	// ModeActive utiliza técnicas activas (port scanning, HTTP probing)
	ModeActive Mode = "active"
)

// IsValid verifica si el modo de escaneo es válido.
func (m Mode) IsValid() bool {
	switch m {
	case ModePassive, ModeHybrid, ModeActive:
		return true
	default:
		return false
	}
}

// String retorna la representación string del modo.
func (m Mode) String() string {
	return string(m)
}

// NormalizeMode convierte entrada arbitraria en un Mode válido.
// Entradas no reconocidas degradan a passive, el modo más seguro.
func NormalizeMode(s string) Mode {
	m := Mode(trimLower(s))
	if !m.IsValid() {
		return ModePassive
	}
	return m
}
