// internal/adapters/output/events.go
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// eventRecord es la forma JSONL de cada emisión persistida.
type eventRecord struct {
	TS       time.Time `json:"ts"`
	Category string    `json:"category"`
	Value    string    `json:"value"`
}

// JSONLEventSink implementa domain.EventSink escribiendo una línea JSON por
// emisión deduplicada. Un error de escritura no invalida la emisión en
// memoria: el caller los descarta.
type JSONLEventSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLEventSink abre (o crea) el fichero de eventos en modo append.
func NewJSONLEventSink(path string) (*JSONLEventSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	return &JSONLEventSink{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Write persiste una emisión como línea JSON.
func (s *JSONLEventSink) Write(ts time.Time, category, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(eventRecord{TS: ts, Category: category, Value: value})
}

// Close cierra el fichero de eventos.
func (s *JSONLEventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
