package definition_test

import (
	"reflect"
	"testing"

	"github.com/railwayapp/ciboot/internal/definition"
)

func TestRequiredBuildArgs(t *testing.T) {
	tests := []struct {
		name       string
		dockerfile string
		want       []string
	}{
		{
			name:       "defaults are optional",
			dockerfile: "ARG VERSION=lts\nARG PLUGINS\nFROM jenkins/jenkins:${VERSION}\n",
			want:       []string{"PLUGINS"},
		},
		{
			name:       "predefined args skipped",
			dockerfile: "FROM alpine\nARG TARGETARCH\nARG HTTP_PROXY\nARG GID\n",
			want:       []string{"GID"},
		},
		{
			name:       "duplicates across stages",
			dockerfile: "FROM alpine AS a\nARG UID\nFROM alpine\nARG UID\n",
			want:       []string{"UID"},
		},
		{
			name:       "no args",
			dockerfile: "FROM jenkins/jenkins:lts\nUSER jenkins\n",
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := definition.RequiredBuildArgs([]byte(tt.dockerfile))
			if err != nil {
				t.Fatalf("RequiredBuildArgs: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
