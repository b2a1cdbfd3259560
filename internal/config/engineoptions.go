package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EngineOption is one extra "setoption" sent during the handshake.
type EngineOption struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type engineOptionsFile struct {
	Options []EngineOption `yaml:"options"`
}

// LoadEngineOptions reads an ordered option list:
//
//	options:
//	  - name: UCI_ShowWDL
//	    value: "true"
func LoadEngineOptions(path string) ([]EngineOption, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine options: %w", err)
	}
	var f engineOptionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse engine options %s: %w", path, err)
	}
	out := make([]EngineOption, 0, len(f.Options))
	for i, o := range f.Options {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			return nil, fmt.Errorf("engine option %d in %s has no name", i+1, path)
		}
		if reservedOption(name) {
			return nil, fmt.Errorf("engine option %q is set through its own setting", name)
		}
		out = append(out, EngineOption{Name: name, Value: strings.TrimSpace(o.Value)})
	}
	return out, nil
}

func reservedOption(name string) bool {
	switch strings.ToLower(name) {
	case "hash", "threads", "skill level":
		return true
	}
	return false
}
