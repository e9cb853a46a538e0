package definition

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	composeTypes "github.com/compose-spec/compose-go/v2/types"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/railwayapp/ciboot/internal/environment"
)

// predefinedArgs are supplied by the builder itself
var predefinedArgs = map[string]bool{
	"HTTP_PROXY": true, "HTTPS_PROXY": true, "FTP_PROXY": true, "NO_PROXY": true, "ALL_PROXY": true,
	"TARGETPLATFORM": true, "TARGETOS": true, "TARGETARCH": true, "TARGETVARIANT": true,
	"BUILDPLATFORM": true, "BUILDOS": true, "BUILDARCH": true, "BUILDVARIANT": true,
}

// RequiredBuildArgs returns the ARG names declared without a default value
func RequiredBuildArgs(content []byte) ([]string, error) {
	result, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var required []string
	for _, child := range result.AST.Children {
		if !strings.EqualFold(child.Value, "arg") {
			continue
		}
		for n := child.Next; n != nil; n = n.Next {
			if strings.Contains(n.Value, "=") {
				continue
			}
			name := n.Value
			if name == "" || predefinedArgs[strings.ToUpper(name)] || seen[name] {
				continue
			}
			seen[name] = true
			required = append(required, name)
		}
	}

	sort.Strings(required)
	return required, nil
}

func (d *Definition) checkBuilds(project *composeTypes.Project) error {
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		service := project.Services[name]
		// remote build contexts are fetched by the builder, not readable here
		if service.Build == nil || strings.Contains(service.Build.Context, "://") {
			continue
		}

		content, path, err := d.dockerfile(service.Build)
		if err != nil {
			return &environment.ValidationError{Field: "service " + name + " dockerfile", Value: path, Reason: err.Error()}
		}

		required, err := RequiredBuildArgs(content)
		if err != nil {
			return &environment.ValidationError{Field: "service " + name + " dockerfile", Value: path, Reason: err.Error()}
		}

		var missing []string
		for _, arg := range required {
			if _, ok := service.Build.Args[arg]; !ok {
				missing = append(missing, arg)
			}
		}
		if len(missing) > 0 {
			return &environment.ValidationError{
				Field:  "service " + name + " build args",
				Value:  strings.Join(missing, ", "),
				Reason: "declared without default in " + path + " and not set in build.args",
			}
		}
	}

	return nil
}

func (d *Definition) dockerfile(build *composeTypes.BuildConfig) ([]byte, string, error) {
	if build.DockerfileInline != "" {
		return []byte(build.DockerfileInline), "inline", nil
	}

	buildContext := build.Context
	if buildContext == "" {
		buildContext = "."
	}
	if !filepath.IsAbs(buildContext) {
		buildContext = filepath.Join(d.WorkingDir, buildContext)
	}

	dockerfile := build.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	if !filepath.IsAbs(dockerfile) {
		dockerfile = filepath.Join(buildContext, dockerfile)
	}

	content, err := d.filesystem.ReadFile(dockerfile)
	return content, dockerfile, err
}
