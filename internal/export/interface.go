package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/railwayapp/ciboot/internal/bootstrap"
)

// Exporter defines the interface for rendering a bootstrap report
type Exporter interface {
	// Export converts a report to the target format
	Export(report *bootstrap.Report) ([]byte, error)

	// Name returns the exporter name (e.g., "text", "json", "yaml")
	Name() string
}

var exporters = map[string]func() Exporter{
	"text": NewTextExporter,
	"json": NewJSONExporter,
	"yaml": NewYAMLExporter,
}

// Formats lists the names accepted by ForFormat
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ForFormat(name string) (Exporter, error) {
	newExporter, ok := exporters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (expected one of %s)", name, strings.Join(Formats(), ", "))
	}
	return newExporter(), nil
}
