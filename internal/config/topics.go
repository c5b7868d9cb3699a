package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTopics mirrors the quota set the service ships with.
func DefaultTopics() map[string]int {
	return map[string]int{
		"Divorcio":            10,
		"PQR":                 2,
		"Abandono de bienes":  10,
		"Abandono de menores": 10,
	}
}

type topicsFile struct {
	Topics map[string]int `yaml:"temas_legales"`
}

// LoadTopics reads a YAML file of the form
//
//	temas_legales:
//	  Divorcio: 10
//
// and falls back to DefaultTopics when path is empty.
func LoadTopics(path string) (map[string]int, error) {
	if path == "" {
		return DefaultTopics(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topics file: %w", err)
	}

	var tf topicsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing topics file: %w", err)
	}
	if len(tf.Topics) == 0 {
		return nil, fmt.Errorf("topics file %s has no temas_legales entries", path)
	}
	for topic, n := range tf.Topics {
		if n < 0 {
			return nil, fmt.Errorf("topic %q has negative quota %d", topic, n)
		}
	}
	return tf.Topics, nil
}
