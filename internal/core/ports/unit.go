// internal/core/ports/unit.go
package ports

import (
	"context"

	"noctua/internal/core/domain"
)

// Unit es el contrato que implementa cada paso de escaneo/descubrimiento.
// El scheduler resuelve DependsOn contra los units habilitados y ejecuta
// Run dentro de la capa que le corresponda.
//
// Run puede ejecutarse concurrentemente con otros units de su misma capa:
// debe mutar el RunContext solo mediante sus operaciones append/merge y
// tratar la ausencia de datos upstream como "no data", nunca como error.
type Unit interface {
	// Name retorna la clave única del unit (ej: "subdomains", "base_ports")
	Name() string

	// Enabled indica si el unit participa en el run
	Enabled() bool

	// DependsOn retorna los nombres de los units de los que depende
	DependsOn() []string

	// Run ejecuta el unit contra el contexto compartido
	Run(ctx context.Context, rc *domain.RunContext) error
}

// UnitMetadata describe un unit registrado. Declarativa: solo se usa para
// construir el grafo, nunca se muta durante la ejecución.
type UnitMetadata struct {
	Name        string
	Description string
	DependsOn   []string
}
