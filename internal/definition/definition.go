package definition

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/template"
	composeTypes "github.com/compose-spec/compose-go/v2/types"
	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are probed in order when no definition path is configured
var DefaultFiles = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
	"deploy/compose.yaml",
}

// Definition is the declarative service definition consumed by the
// orchestration layer. It is read, never written.
type Definition struct {
	Path       string
	WorkingDir string
	// Variables are the ${KEY} and ${KEY:-default} references in the file
	Variables map[string]template.Variable

	required   map[string]bool
	content    []byte
	filesystem filesystems.FileSystem
}

// Find returns the first default definition file present in dir
func Find(filesystem filesystems.FileSystem, dir string) (string, error) {
	for _, name := range DefaultFiles {
		path := filesystem.Join(dir, name)
		if info, err := filesystem.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", &environment.ValidationError{
		Field:  "service definition",
		Value:  dir,
		Reason: "no " + strings.Join(DefaultFiles, ", ") + " found",
	}
}

// Load reads the definition and extracts the variables it references
func Load(ctx context.Context, filesystem filesystems.FileSystem, path string) (*Definition, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	content, err := filesystem.ReadFile(absPath)
	if err != nil {
		return nil, &environment.ValidationError{Field: "service definition", Value: path, Reason: err.Error()}
	}

	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, &environment.ValidationError{Field: "service definition", Value: path, Reason: err.Error()}
	}
	if dict == nil {
		return nil, &environment.ValidationError{Field: "service definition", Value: path, Reason: "file is empty"}
	}

	return &Definition{
		Path:       absPath,
		WorkingDir: filepath.Dir(absPath),
		Variables:  template.ExtractVariables(dict, template.DefaultPattern),
		required:   requiredVariables(dict),
		content:    content,
		filesystem: filesystem,
	}, nil
}

// RequiredKeys returns the variables with at least one reference that has no
// fallback: bare ${KEY} or $KEY, and ${KEY:?msg}. ${KEY:-d}, ${KEY-}, and
// ${KEY:+v} substitute something when KEY is unset.
func (d *Definition) RequiredKeys() []string {
	var keys []string
	for name, required := range d.required {
		if required {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

var referencePattern = regexp.MustCompile(`\$(?:\{([_A-Za-z][_A-Za-z0-9]*)(:?[-+?])?|([_A-Za-z][_A-Za-z0-9]*))`)

func requiredVariables(value interface{}) map[string]bool {
	required := make(map[string]bool)
	var walk func(interface{})
	walk = func(value interface{}) {
		switch value := value.(type) {
		case string:
			// $$ is a literal dollar sign
			text := strings.ReplaceAll(value, "$$", "")
			for _, match := range referencePattern.FindAllStringSubmatch(text, -1) {
				name, op := match[1], match[2]
				if name == "" {
					name = match[3]
				}
				hasFallback := op != "" && !strings.HasSuffix(op, "?")
				required[name] = required[name] || !hasFallback
			}
		case map[string]interface{}:
			for _, elem := range value {
				walk(elem)
			}
		case []interface{}:
			for _, elem := range value {
				walk(elem)
			}
		}
	}
	walk(value)
	return required
}

// Check confirms the descriptor satisfies the definition: every variable
// referenced without a default is present and non-empty, the project loads
// with the descriptor as its environment, file-backed secrets exist, and
// build args cover the Dockerfile's required ARGs.
func (d *Definition) Check(ctx context.Context, descriptor environment.Descriptor) error {
	var missing []string
	for _, key := range d.RequiredKeys() {
		if strings.TrimSpace(descriptor[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &environment.ValidationError{
			Field:  "descriptor",
			Value:  strings.Join(missing, ", "),
			Reason: "referenced by " + d.Path + " but missing or empty",
		}
	}

	project, err := d.project(ctx, descriptor)
	if err != nil {
		return &environment.ValidationError{Field: "service definition", Value: d.Path, Reason: err.Error()}
	}

	if err := d.checkSecrets(project); err != nil {
		return err
	}

	return d.checkBuilds(project)
}

func (d *Definition) project(ctx context.Context, descriptor environment.Descriptor) (*composeTypes.Project, error) {
	configDetails := composeTypes.ConfigDetails{
		WorkingDir: d.WorkingDir,
		ConfigFiles: []composeTypes.ConfigFile{
			{
				Filename: d.Path,
				Content:  d.content,
			},
		},
		// the loader records COMPOSE_PROJECT_NAME in its environment
		Environment: composeTypes.Mapping(maps.Clone(descriptor)),
	}

	projectName := loader.NormalizeProjectName(filepath.Base(d.WorkingDir))
	if projectName == "" {
		projectName = "ciboot"
	}

	return loader.LoadWithContext(ctx, configDetails, func(options *loader.Options) {
		options.SetProjectName(projectName, true)
		options.ResolvePaths = true
	})
}

// SecretFiles returns the file-backed secrets of the loaded project,
// name to absolute path
func (d *Definition) SecretFiles(ctx context.Context, descriptor environment.Descriptor) (map[string]string, error) {
	project, err := d.project(ctx, descriptor)
	if err != nil {
		return nil, &environment.ValidationError{Field: "service definition", Value: d.Path, Reason: err.Error()}
	}
	return d.secretFiles(project), nil
}

func (d *Definition) secretFiles(project *composeTypes.Project) map[string]string {
	files := make(map[string]string)
	for name, secret := range project.Secrets {
		if secret.File == "" || bool(secret.External) {
			continue
		}
		path := secret.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(d.WorkingDir, path)
		}
		files[name] = path
	}
	return files
}

func (d *Definition) checkSecrets(project *composeTypes.Project) error {
	files := d.secretFiles(project)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info, err := d.filesystem.Stat(files[name])
		if err != nil || info.IsDir() {
			return &environment.ValidationError{
				Field:  "secret " + name,
				Value:  files[name],
				Reason: "file-backed secret does not exist",
			}
		}
	}
	return nil
}
