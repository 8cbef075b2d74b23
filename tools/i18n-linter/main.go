// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks the locale files for missing or orphaned translation
// keys. It scans the Go sources for i18n.T and i18n.TL calls, compares them
// against the English locale and makes sure every other locale carries the
// same keys with the same format verbs.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
	projectRoot   = "."
)

var (
	usedKeyRe = regexp.MustCompile(`i18n\.T\("([^"]+)"|i18n\.TL\([^,()]+,\s*"([^"]+)"`)
	verbRe    = regexp.MustCompile(`%[-+# 0]*\d*(?:\.\d+)?[a-zA-Z]`)
)

func main() {
	ok, err := run(projectRoot, os.Stdout)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// run reports to out and returns false when a locale is inconsistent.
// Orphaned keys are only a warning.
func run(root string, out io.Writer) (bool, error) {
	used, err := findUsedKeys(root)
	if err != nil {
		return false, fmt.Errorf("finding used keys: %w", err)
	}
	fmt.Fprintf(out, "found %d translation keys in source code\n", len(used))

	dir := filepath.Join(root, localesDir)
	primary, err := loadLocale(filepath.Join(dir, primaryLocale))
	if err != nil {
		return false, fmt.Errorf("loading primary locale %s: %w", primaryLocale, err)
	}

	ok := true
	for _, key := range sortedKeys(used) {
		if _, exists := primary[key]; !exists {
			fmt.Fprintf(out, "  undefined: %s\n", key)
			ok = false
		}
	}
	for _, key := range sortedKeys(primary) {
		if _, exists := used[key]; !exists {
			fmt.Fprintf(out, "  orphaned: %s\n", key)
		}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return false, err
	}
	for _, file := range files {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		other, err := loadLocale(file)
		if err != nil {
			fmt.Fprintf(out, "  %s: %v\n", filepath.Base(file), err)
			ok = false
			continue
		}
		for _, problem := range compareLocales(primary, other) {
			fmt.Fprintf(out, "  %s: %s\n", filepath.Base(file), problem)
			ok = false
		}
	}

	if ok {
		fmt.Fprintln(out, "all translation files are consistent")
	}
	return ok, nil
}

// findUsedKeys scans non-test .go files below root, skipping tools/.
func findUsedKeys(root string) (map[string]string, error) {
	keys := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && (info.Name() == "tools" || strings.HasPrefix(info.Name(), "_")) {
			return filepath.SkipDir
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range usedKeyRe.FindAllStringSubmatch(string(content), -1) {
			key := m[1]
			if key == "" {
				key = m[2]
			}
			keys[key] = path
		}
		return nil
	})
	return keys, err
}

// loadLocale reads a flat key: message YAML file.
func loadLocale(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]string
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// compareLocales lists keys missing from other and messages whose format
// verbs differ from the primary's.
func compareLocales(primary, other map[string]string) []string {
	var problems []string
	for _, key := range sortedKeys(primary) {
		msg, exists := other[key]
		if !exists {
			problems = append(problems, "missing: "+key)
			continue
		}
		want := verbRe.FindAllString(primary[key], -1)
		got := verbRe.FindAllString(msg, -1)
		if strings.Join(want, " ") != strings.Join(got, " ") {
			problems = append(problems, fmt.Sprintf("format verbs differ for %s: %v vs %v", key, want, got))
		}
	}
	return problems
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
