package export

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/railwayapp/ciboot/internal/bootstrap"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	partialStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true)
)

// TextExporter renders the report for a terminal
type TextExporter struct{}

func (e *TextExporter) Name() string {
	return "text"
}

func (e *TextExporter) Export(report *bootstrap.Report) ([]byte, error) {
	var sb strings.Builder

	switch report.Outcome {
	case bootstrap.Success:
		sb.WriteString(successStyle.Render("✓ Bootstrap succeeded"))
	case bootstrap.Partial:
		sb.WriteString(partialStyle.Render("! Bootstrap finished, service not ready yet"))
	default:
		sb.WriteString(failureStyle.Render(fmt.Sprintf("✗ Bootstrap failed at %s", report.FailedStage)))
	}
	sb.WriteString("\n\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(valueStyle.Render(value))
		sb.WriteString("\n")
	}

	row("Runtime socket", report.HostSocket)
	if report.EffectiveSocket != report.HostSocket {
		row("Mounted socket", report.EffectiveSocket)
	}
	row("Runtime shim", report.Shim)
	row("Secrets dir", report.SecretsDir)
	row("Generated", strings.Join(report.SecretsGenerated, ", "))
	row("Preserved", strings.Join(report.SecretsPreserved, ", "))
	row("Definition", report.DefinitionPath)
	row("Descriptor", report.DescriptorPath)
	row("Service URL", report.ServiceURL)

	if report.Readiness != nil {
		row("Readiness", fmt.Sprintf("%s after %d attempt(s) in %s", report.Readiness.Status, report.Readiness.Attempts, report.Readiness.Elapsed))
		row("Last probe error", report.Readiness.LastError)
	} else if report.Outcome == bootstrap.Success && !report.Started {
		row("Service", "not started")
	}

	if report.Error != "" {
		sb.WriteString("\n")
		sb.WriteString(failureStyle.Render("Error: "))
		sb.WriteString(report.Error)
		sb.WriteString("\n")
	}

	if report.Outcome == bootstrap.Partial {
		sb.WriteString("\n")
		sb.WriteString(hintStyle.Render("The service may still be starting; re-check with `ciboot wait`."))
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

func NewTextExporter() Exporter {
	return &TextExporter{}
}
