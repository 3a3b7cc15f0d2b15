// Package i18n provides flat key/value translations loaded from YAML
// locale files.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Translator holds loaded locales and falls back to a default language.
type Translator struct {
	locales     map[string]map[string]string
	defaultLang string
}

// NewTranslator loads every *.yaml file in dir. File names double as
// language codes: en.yaml, ru.yaml.
func NewTranslator(dir string, defaultLang string) (*Translator, error) {
	t := &Translator{
		locales:     make(map[string]map[string]string),
		defaultLang: defaultLang,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".yaml")
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", entry.Name(), err)
		}
		kv := make(map[string]string)
		if err := yaml.Unmarshal(data, &kv); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", entry.Name(), err)
		}
		t.locales[lang] = kv
	}

	if _, ok := t.locales[defaultLang]; !ok {
		t.locales[defaultLang] = make(map[string]string)
	}

	return t, nil
}

// NewFallback creates an empty translator that echoes keys back.
func NewFallback(defaultLang string) *Translator {
	return &Translator{
		locales:     map[string]map[string]string{defaultLang: {}},
		defaultLang: defaultLang,
	}
}

// T returns the translation for key in lang, falling back to the default
// language and finally to the key itself.
func (t *Translator) T(lang, key string) string {
	if lang != "" {
		if val, ok := t.locales[lang][key]; ok {
			return val
		}
	}
	if val, ok := t.locales[t.defaultLang][key]; ok {
		return val
	}
	return key
}

// Available returns the loaded language codes.
func (t *Translator) Available() []string {
	langs := make([]string, 0, len(t.locales))
	for lang := range t.locales {
		langs = append(langs, lang)
	}
	return langs
}
