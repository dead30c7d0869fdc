package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/BerylCAtieno/milo-api/internal/models"
)

//go:embed milo.toml
var defaultDefinition []byte

// Definition is the decoded prompt file.
type Definition struct {
	Version    string   `toml:"version"`
	Persona    string   `toml:"persona"`
	NoPatient  string   `toml:"no_patient"`
	Template   string   `toml:"template"`
	Formatting []string `toml:"formatting"`
	Guardrails []string `toml:"guardrails"`
	Targets    []Target `toml:"targets"`
	Plans      []Plan   `toml:"plans"`
}

// Target is one optimization goal. Sex is empty for goals that apply to everyone.
type Target struct {
	System string   `toml:"system"`
	Marker string   `toml:"marker"`
	Sex    string   `toml:"sex"`
	Goal   string   `toml:"goal"`
	Notes  []string `toml:"notes"`
}

// SexLabel is the heading prefix used when a target is sex specific.
func (t Target) SexLabel() string {
	switch t.Sex {
	case "female":
		return "Females:"
	case "male":
		return "Males:"
	default:
		return ""
	}
}

type Plan struct {
	Condition string `toml:"condition"`
	Action    string `toml:"action"`
}

// Patient is the subset of a patient record the system prompt needs.
type Patient struct {
	Name   string
	Gender string
}

type system struct {
	Name    string
	Targets []Target
}

type templateData struct {
	Persona     string
	Systems     []system
	Plans       []Plan
	Formatting  []string
	Guardrails  []string
	Today       string
	PatientName string
	Gender      string
}

// Assembler renders the system prompt and builds the message list sent to
// the generation service.
type Assembler struct {
	def       Definition
	full      *template.Template
	noPatient *template.Template
	now       func() time.Time
}

// Load reads a prompt definition from path, or the embedded default when
// path is empty.
func Load(path string) (*Assembler, error) {
	if path == "" {
		return Parse(defaultDefinition)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a TOML prompt definition and compiles its templates.
func Parse(data []byte) (*Assembler, error) {
	var def Definition
	if _, err := toml.Decode(string(data), &def); err != nil {
		return nil, fmt.Errorf("failed to decode prompt definition: %w", err)
	}
	if def.Version == "" {
		return nil, fmt.Errorf("prompt definition has no version")
	}
	if strings.TrimSpace(def.Template) == "" {
		return nil, fmt.Errorf("prompt definition %s has no template", def.Version)
	}

	full, err := template.New("system").Option("missingkey=error").Parse(def.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system template: %w", err)
	}
	noPatient, err := template.New("no_patient").Option("missingkey=error").Parse(def.NoPatient)
	if err != nil {
		return nil, fmt.Errorf("failed to parse no-patient template: %w", err)
	}

	return &Assembler{
		def:       def,
		full:      full,
		noPatient: noPatient,
		now:       time.Now,
	}, nil
}

// Version identifies the prompt content in logs.
func (a *Assembler) Version() string {
	return a.def.Version
}

// SystemPrompt renders the system message. A nil patient produces the short
// variant without the target table.
func (a *Assembler) SystemPrompt(p *Patient) (string, error) {
	data := templateData{
		Persona:    a.def.Persona,
		Plans:      a.def.Plans,
		Formatting: a.def.Formatting,
		Guardrails: a.def.Guardrails,
		Today:      a.now().Format("January 2, 2006"),
	}

	tmpl := a.noPatient
	if p != nil {
		tmpl = a.full
		data.PatientName = p.Name
		data.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
		data.Systems = groupTargets(a.def.Targets, data.Gender)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return b.String(), nil
}

// Build returns the system message, the prior history in order and the new
// user message. History text is passed through unchanged.
func (a *Assembler) Build(p *Patient, history []models.ChatMessage, newest string) ([]models.CompletionMessage, error) {
	sys, err := a.SystemPrompt(p)
	if err != nil {
		return nil, err
	}

	messages := make([]models.CompletionMessage, 0, len(history)+2)
	messages = append(messages, models.CompletionMessage{Role: "system", Content: sys})
	for _, m := range history {
		role := "user"
		if m.Sender == models.SenderAssistant {
			role = "assistant"
		}
		messages = append(messages, models.CompletionMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, models.CompletionMessage{Role: "user", Content: newest})

	return messages, nil
}

// groupTargets keeps file order of systems. With a known gender, targets for
// the other sex are left out.
func groupTargets(targets []Target, gender string) []system {
	var out []system
	index := make(map[string]int)

	for _, t := range targets {
		if t.Sex != "" && gender != "" && t.Sex != gender {
			continue
		}
		i, ok := index[t.System]
		if !ok {
			i = len(out)
			index[t.System] = i
			out = append(out, system{Name: t.System})
		}
		out[i].Targets = append(out[i].Targets, t)
	}
	return out
}
