// internal/adapters/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"noctua/internal/core/domain"
)

// sanitizeHostName convierte un nombre de host en un nombre de carpeta
// válido. Ejemplo: "example.com" -> "example_com"
func sanitizeHostName(host string) string {
	sanitized := strings.ReplaceAll(host, ".", "_")
	sanitized = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, sanitized)
	return sanitized
}

// WriteJSON exporta el resultado del run en formato JSON bajo un
// subdirectorio por host.
func WriteJSON(dir string, result *domain.RunResult) (string, error) {
	if dir == "" {
		dir = "."
	}

	hostDir := sanitizeHostName(result.Scope.Host)
	fullDir := filepath.Join(dir, hostDir)

	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("noctua_%s_%s.json", result.Scope.Host, timestamp)
	path := filepath.Join(fullDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}

	return path, nil
}

// WriteJSONStdout exporta el resultado a stdout en formato JSON.
func WriteJSONStdout(result *domain.RunResult, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
