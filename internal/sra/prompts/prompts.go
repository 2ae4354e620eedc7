// Package prompts holds the fixed prompt templates used by the resonance art
// pipelines, stored as embedded YAML documents.
package prompts

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed *.yaml
var files embed.FS

type promptFile struct {
	Template string `yaml:"template"`
}

func load(name string) string {
	data, err := files.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded prompt %s: %v", name, err))
	}
	var p promptFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		panic(fmt.Sprintf("invalid embedded prompt %s: %v", name, err))
	}
	return p.Template
}

// Format substitutes {name} placeholders in a template with the given values.
func Format(template string, vars map[string]string) string {
	for name, value := range vars {
		template = strings.ReplaceAll(template, "{"+name+"}", value)
	}
	return template
}

var (
	// System is the assistant persona used by the conversational reply and
	// the follow-up message generator.
	System = load("system_prompt.yaml")

	// IntentExtraction instructs the classifier's function call.
	IntentExtraction = load("intent_extraction_prompt.yaml")

	// ImageGeneration expands a raw description into a detailed image prompt.
	ImageGeneration = load("image_generation_prompt.yaml")

	// PromptSummary condenses over-long prompts before image generation.
	PromptSummary = load("prompt_summary_prompt.yaml")

	// DocumentImage asks for an image prompt grounded in document context.
	DocumentImage = load("document_image_prompt.yaml")
)
