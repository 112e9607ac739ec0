// Package localization provides the message catalogue used for status
// history entries and notifications. The English catalogue is embedded;
// extra languages can be loaded from a directory of JSON files.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

// DefaultLanguage is used when a key is missing in the requested language.
const DefaultLanguage = "en"

//go:embed messages/*.json
var embedded embed.FS

// Localizer manages the translations for the application.
// It holds a map of languages, each with its own map of translation keys and values.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// Default returns a Localizer holding only the embedded catalogue.
func Default() *Localizer {
	l, err := load(embedded, "messages")
	if err != nil {
		// The embedded files are part of the build.
		panic(err)
	}
	return l
}

// NewLocalizer creates a Localizer from the embedded catalogue and then
// overlays every "<lang>.json" file found in path. An empty path loads
// only the embedded catalogue.
func NewLocalizer(path string) (*Localizer, error) {
	l := Default()
	if path == "" {
		return l, nil
	}
	extra, err := load(os.DirFS(path), ".")
	if err != nil {
		return nil, err
	}
	for lang, keys := range extra.translations {
		if l.translations[lang] == nil {
			l.translations[lang] = make(map[string]string, len(keys))
		}
		for k, v := range keys {
			l.translations[lang][k] = v
		}
	}
	return l, nil
}

func load(fsys fs.FS, dir string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format looks up key and applies args with fmt.Sprintf.
func (l *Localizer) Format(lang, key string, args ...interface{}) string {
	msg := l.GetString(lang, key)
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Languages lists the loaded language codes.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		out = append(out, lang)
	}
	return out
}
