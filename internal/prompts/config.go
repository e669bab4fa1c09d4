package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed interviewer.yaml
var defaultConfigYAML []byte

// Config is the swappable prompt content: persona, defaults and the two
// classifier tables.
type Config struct {
	Persona         string    `yaml:"persona"`
	DefaultBehavior string    `yaml:"default_behavior"`
	DefaultRole     string    `yaml:"default_role"`
	MinQuestions    int       `yaml:"min_questions"`
	MaxQuestions    int       `yaml:"max_questions"`
	Role            RuleTable `yaml:"role"`
	InterviewType   RuleTable `yaml:"interview_type"`
}

// RuleTable maps free text to a guidance id. Rules are evaluated in order
// and the first keyword hit wins.
type RuleTable struct {
	Rules    []Rule            `yaml:"rules"`
	Fallback string            `yaml:"fallback"`
	Guidance map[string]string `yaml:"guidance"`
	// WholeWords restricts keywords to matches bounded by non-alphanumerics,
	// so "hr" does not hit "three".
	WholeWords bool `yaml:"whole_words"`
}

// Rule selects Guidance when any of its keywords occurs in the input.
type Rule struct {
	Keywords []string `yaml:"keywords"`
	Guidance string   `yaml:"guidance"`
}

// DefaultConfig returns the built-in interviewer configuration.
func DefaultConfig() Config {
	cfg, err := ParseConfig(defaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded interviewer.yaml: %v", err))
	}
	return cfg
}

// LoadConfig reads a YAML prompt configuration from path. An empty path
// returns DefaultConfig.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read prompt config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("prompt config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML prompt configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.Persona) == "" {
		errs = append(errs, errors.New("persona is required"))
	}
	if c.MinQuestions <= 0 || c.MinQuestions > c.MaxQuestions {
		errs = append(errs, fmt.Errorf("question bounds %d..%d are invalid", c.MinQuestions, c.MaxQuestions))
	}
	if err := c.Role.validate("role"); err != nil {
		errs = append(errs, err)
	}
	if err := c.InterviewType.validate("interview_type"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t RuleTable) validate(name string) error {
	if _, ok := t.Guidance[t.Fallback]; !ok {
		return fmt.Errorf("%s: fallback %q has no guidance", name, t.Fallback)
	}
	for i, r := range t.Rules {
		if len(r.Keywords) == 0 {
			return fmt.Errorf("%s: rule %d has no keywords", name, i)
		}
		if _, ok := t.Guidance[r.Guidance]; !ok {
			return fmt.Errorf("%s: rule %d references unknown guidance %q", name, i, r.Guidance)
		}
	}
	return nil
}
