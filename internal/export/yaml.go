package export

import (
	"github.com/railwayapp/ciboot/internal/bootstrap"
	"gopkg.in/yaml.v3"
)

type YAMLExporter struct{}

func (e *YAMLExporter) Name() string {
	return "yaml"
}

func (e *YAMLExporter) Export(report *bootstrap.Report) ([]byte, error) {
	return yaml.Marshal(report)
}

func NewYAMLExporter() Exporter {
	return &YAMLExporter{}
}
