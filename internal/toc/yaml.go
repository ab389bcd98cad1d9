package toc

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDoc is the on-disk shape of a table-of-contents declaration. Sequences
// (not maps) are used for each category so registration order is preserved.
type fileDoc struct {
	Variables []struct {
		Name     string `yaml:"name"`
		Variable string `yaml:"variable"`
		Key      string `yaml:"key"`
	} `yaml:"variables"`
	InternalVariables []struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
		Key  string `yaml:"key"`
	} `yaml:"internal_variables"`
	Meters []struct {
		Name  string `yaml:"name"`
		Meter string `yaml:"meter"`
	} `yaml:"meters"`
	Actuators []struct {
		Name          string `yaml:"name"`
		ComponentType string `yaml:"component_type"`
		ControlType   string `yaml:"control_type"`
		Key           string `yaml:"key"`
	} `yaml:"actuators"`
	Weather []struct {
		Name   string `yaml:"name"`
		Metric string `yaml:"metric"`
	} `yaml:"weather"`
}

// Load parses a YAML table-of-contents declaration into validated entries,
// in document order.
func Load(r io.Reader) ([]Entry, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("toc: parse yaml: %w", err)
	}

	var entries []Entry
	add := func(cat Category, name string, key ...string) error {
		e, err := NewEntry(cat, name, key...)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	}
	for _, v := range doc.Variables {
		if err := add(CategoryVariable, v.Name, v.Variable, v.Key); err != nil {
			return nil, err
		}
	}
	for _, v := range doc.InternalVariables {
		if err := add(CategoryInternalVariable, v.Name, v.Type, v.Key); err != nil {
			return nil, err
		}
	}
	for _, m := range doc.Meters {
		if err := add(CategoryMeter, m.Name, m.Meter); err != nil {
			return nil, err
		}
	}
	for _, a := range doc.Actuators {
		if err := add(CategoryActuator, a.Name, a.ComponentType, a.ControlType, a.Key); err != nil {
			return nil, err
		}
	}
	for _, w := range doc.Weather {
		if err := add(CategoryWeather, w.Name, w.Metric); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// LoadFile reads and parses a YAML table-of-contents file.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("toc: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
