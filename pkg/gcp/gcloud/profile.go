package gcloud

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const coreSection = "core"

// ProfileEntry is the [core] section of a gcloud configuration.
type ProfileEntry struct {
	Account string `mapstructure:"account" json:"account"`
	Project string `mapstructure:"project" json:"project"`
}

// ParseProfile returns the [core] entry, or nil when the section is absent or
// lacks a non-empty account and project.
func ParseProfile(raw []byte) *ProfileEntry {
	core, ok := Sections(raw)[coreSection]
	if !ok {
		return nil
	}

	var entry ProfileEntry
	if err := mapstructure.Decode(core, &entry); err != nil {
		return nil
	}
	if entry.Account == "" || entry.Project == "" {
		return nil
	}
	return &entry
}

// Sections walks a gcloud configuration file. A "[name]" line opens a
// section, the "key = value" lines after it belong to that section until a
// blank line. A repeated section replaces the earlier one.
func Sections(raw []byte) map[string]map[string]string {
	sections := map[string]map[string]string{}

	var current map[string]string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if name, ok := sectionHeader(line); ok {
			current = map[string]string{}
			sections[name] = current
			continue
		}

		if current == nil {
			continue
		}

		if line == "" {
			current = nil
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		current[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return sections
}

func sectionHeader(line string) (string, bool) {
	if len(line) < 2 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(line[1 : len(line)-1]), true
}
