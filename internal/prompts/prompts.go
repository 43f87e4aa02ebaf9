// Package prompts holds the fixed model prompts, loaded from an embedded YAML
// file that an operator may override.
package prompts

import (
	"bytes"
	_ "embed"
	"os"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultYAML []byte

// Set is the collection of prompts used by the pipeline.
type Set struct {
	Extraction    string `yaml:"extraction"`
	ExtractionCLI string `yaml:"extraction_cli"`
	MergeSystem   string `yaml:"merge_system"`
	MergeTemplate string `yaml:"merge_template"`

	merge *template.Template
}

// MergeInput fills MergeTemplate.
type MergeInput struct {
	QAPairs string
	Body    string
}

// Default returns the embedded prompt set.
func Default() *Set {
	s, err := parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return s
}

// Load reads a prompt file from path. Empty path returns Default. Keys
// missing from the file keep their embedded values.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: read %s", path)
	}

	base := Default()
	override, err := parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: %s", path)
	}
	if override.Extraction != "" {
		base.Extraction = override.Extraction
	}
	if override.ExtractionCLI != "" {
		base.ExtractionCLI = override.ExtractionCLI
	}
	if override.MergeSystem != "" {
		base.MergeSystem = override.MergeSystem
	}
	if override.MergeTemplate != "" {
		base.MergeTemplate = override.MergeTemplate
		base.merge = override.merge
	}
	return base, nil
}

func parse(data []byte) (*Set, error) {
	var wrapper struct {
		Prompts Set `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "prompts: parse yaml")
	}
	s := &wrapper.Prompts
	if s.MergeTemplate != "" {
		tmpl, err := template.New("merge").Option("missingkey=error").Parse(s.MergeTemplate)
		if err != nil {
			return nil, eris.Wrap(err, "prompts: parse merge template")
		}
		s.merge = tmpl
	}
	return s, nil
}

// RenderMerge renders the merge prompt.
func (s *Set) RenderMerge(in MergeInput) (string, error) {
	if s.merge == nil {
		return "", eris.New("prompts: merge template is not set")
	}
	var buf bytes.Buffer
	if err := s.merge.Execute(&buf, in); err != nil {
		return "", eris.Wrap(err, "prompts: render merge template")
	}
	return buf.String(), nil
}
