// internal/units/followup/templates.go
package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"noctua/internal/core/domain"
	"noctua/internal/platform/logx"
	"noctua/internal/units/common"
)

// TemplateScanHandler lanza nuclei contra un único target con los tags que
// la regla de decisión pasó como args (p.ej. jenkins-cves).
type TemplateScanHandler struct {
	binPath string
	timeout time.Duration
	logger  logx.Logger
}

// NewTemplateScanHandler crea el handler de escaneo por templates dirigido.
func NewTemplateScanHandler(binPath string, timeout time.Duration, logger logx.Logger) *TemplateScanHandler {
	if binPath == "" {
		binPath = "nuclei"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &TemplateScanHandler{
		binPath: binPath,
		timeout: timeout,
		logger:  logger.With("handler", "templates"),
	}
}

func (h *TemplateScanHandler) Type() domain.TaskType { return domain.TaskTemplateScan }

// Handle ejecuta nuclei sobre el target con los tags de la tarea.
func (h *TemplateScanHandler) Handle(ctx context.Context, rc *domain.RunContext, task domain.ScanTask, target string) ([]string, error) {
	runner := common.NewCLIRunner(h.logger, common.CLIConfig{
		UnitName: "templates",
		ExecPath: h.binPath,
		Timeout:  h.timeout,
	})
	if err := runner.Init("go install github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest"); err != nil {
		return nil, err
	}
	defer runner.Close()

	args := []string{"-u", target, "-jsonl", "-silent"}
	for _, tag := range task.Args {
		args = append(args, "-tags", tag)
	}

	events := 0
	_, execErr := runner.Execute(ctx, args, func(line []byte) error {
		if len(line) == 0 {
			return nil
		}
		rc.AppendVulnRaw(string(line) + "\n")

		var ev struct {
			TemplateID string `json:"template-id"`
			Info       struct {
				Severity string `json:"severity"`
			} `json:"info"`
		}
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil
		}
		events++

		finding := fmt.Sprintf("[%s] %s on %s", ev.Info.Severity, ev.TemplateID, target)
		rc.AddFindings(finding)
		rc.Emit("vuln", finding)
		return nil
	})

	if execErr != nil && events == 0 {
		return nil, execErr
	}
	return nil, nil
}
