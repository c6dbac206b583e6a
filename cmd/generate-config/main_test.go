package main

import (
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/adventure/internal/config"
)

func TestGenerate(t *testing.T) {
	output, err := generate()
	if err != nil {
		t.Fatalf("generate() error = %v", err)
	}
	if !strings.HasPrefix(output, "# Adventure Configuration Example") {
		t.Error("Expected the header comment")
	}
	if strings.Contains(output, "secret") || strings.Contains(output, "access") {
		t.Error("Expected credentials to stay out of the example")
	}

	var parsed config.Config
	if err := yaml.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("Generated config does not parse: %v", err)
	}
	defaults := config.Config{}
	config.ApplyDefaults(&defaults)
	if !reflect.DeepEqual(parsed, defaults) {
		t.Errorf("Expected generated config to round-trip the defaults:\n got %+v\nwant %+v", parsed, defaults)
	}
}
