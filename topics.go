package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed topics.yaml
var defaultTopicsYAML []byte

// embeddedTopicsSource is reported as the source of the built-in table
const embeddedTopicsSource = "embedded:topics.yaml"

var errMissingTopic = errors.New("missing topic")

// ParseTopicTable decodes a topic table from YAML (or JSON, which is valid YAML)
func ParseTopicTable(data []byte) (TopicTable, error) {
	var table TopicTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse topic table: %w", err)
	}
	if len(table) == 0 {
		return nil, errors.New("topic table is empty")
	}
	return table, nil
}

// LoadTopicTable reads the table from path, or the embedded default when path is empty.
// It returns the table together with a human readable source description.
func LoadTopicTable(path string) (TopicTable, string, error) {
	if path == "" {
		table, err := ParseTopicTable(defaultTopicsYAML)
		return table, embeddedTopicsSource, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load topic table: %w", err)
	}

	table, err := ParseTopicTable(data)
	return table, path, err
}

// Lookup returns the answer stored for ref
func (t TopicTable) Lookup(ref topicRef) (string, error) {
	answer := t[ref.Category][ref.Key]
	if answer == "" {
		return "", fmt.Errorf("%w: %s/%s", errMissingTopic, ref.Category, ref.Key)
	}
	return answer, nil
}

// Counts returns the number of topics per category
func (t TopicTable) Counts() map[string]int {
	counts := make(map[string]int, len(t))
	for category, topics := range t {
		counts[category] = len(topics)
	}
	return counts
}

// Keys lists the topic keys of a category in sorted order
func (t TopicTable) Keys(category string) []string {
	keys := make([]string, 0, len(t[category]))
	for key := range t[category] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
