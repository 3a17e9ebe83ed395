// internal/core/usecases/dependency_graph.go
package usecases

import (
	"noctua/internal/core/ports"
)

// dependencyGraph representa el grafo de dependencias entre units.
type dependencyGraph struct {
	// nodes mapea unit name a su índice en el slice
	nodes map[string]int

	// units lista en orden de declaración
	units []ports.Unit

	// adjacencyList mapea índice de unit a lista de units dependientes.
	// adjacencyList[A] = [B, C] significa que B y C dependen de A.
	adjacencyList map[int][]int

	// inDegree mapea índice de unit a número de dependencias entrantes
	inDegree map[int]int
}

// buildDependencyGraph construye el grafo de dependencias declaradas por
// nombre. Una dependencia que apunta a un unit ausente (deshabilitado o no
// registrado) se descarta con warning: el unit dependiente se ejecuta igual,
// en una capa anterior a la que le hubiera correspondido.
func (s *Scheduler) buildDependencyGraph(units []ports.Unit) *dependencyGraph {
	graph := &dependencyGraph{
		nodes:         make(map[string]int),
		units:         make([]ports.Unit, 0, len(units)),
		adjacencyList: make(map[int][]int),
		inDegree:      make(map[int]int),
	}

	for i, unit := range units {
		graph.nodes[unit.Name()] = i
		graph.units = append(graph.units, unit)
		graph.inDegree[i] = 0
	}

	for i, unit := range units {
		for _, depName := range unit.DependsOn() {
			j, exists := graph.nodes[depName]
			if !exists {
				s.logger.Warn("dependency not available, dropping edge",
					"unit", unit.Name(),
					"depends_on", depName,
				)
				continue
			}
			if j == i {
				continue
			}
			// Arista: j -> i (i depende de j)
			graph.adjacencyList[j] = append(graph.adjacencyList[j], i)
			graph.inDegree[i]++
		}
	}

	return graph
}

// topologicalSortByLevels ejecuta topological sort y agrupa units por niveles
// (capas). Usa algoritmo de Kahn con BFS: todos los units de una capa tienen
// sus dependencias satisfechas por capas anteriores.
//
// Si el grafo contiene un ciclo, degrada a ejecución serial: una capa por
// unit, en orden de declaración. Un run degradado sigue siendo un run válido.
func (s *Scheduler) topologicalSortByLevels(graph *dependencyGraph) []Layer {
	n := len(graph.units)
	if n == 0 {
		return nil
	}

	currentInDegree := make(map[int]int, n)
	for i := 0; i < n; i++ {
		currentInDegree[i] = graph.inDegree[i]
	}

	queue := make([]int, 0)
	processed := 0

	for i := 0; i < n; i++ {
		if currentInDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	layers := make([]Layer, 0)

	for len(queue) > 0 {
		layerSize := len(queue)
		layerUnits := make([]ports.Unit, 0, layerSize)

		for i := 0; i < layerSize; i++ {
			idx := queue[0]
			queue = queue[1:]

			layerUnits = append(layerUnits, graph.units[idx])
			processed++

			for _, dependentIdx := range graph.adjacencyList[idx] {
				currentInDegree[dependentIdx]--
				if currentInDegree[dependentIdx] == 0 {
					queue = append(queue, dependentIdx)
				}
			}
		}

		layers = append(layers, Layer{Units: layerUnits})
	}

	if processed != n {
		unprocessed := make([]string, 0)
		for i := 0; i < n; i++ {
			if graph.inDegree[i] != 0 && currentInDegree[i] > 0 {
				unprocessed = append(unprocessed, graph.units[i].Name())
			}
		}
		s.logger.Warn("circular dependency detected, degrading to serial execution",
			"involved", unprocessed,
		)

		fallback := make([]Layer, 0, n)
		for _, unit := range graph.units {
			fallback = append(fallback, Layer{Units: []ports.Unit{unit}})
		}
		return fallback
	}

	return layers
}
