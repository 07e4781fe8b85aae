// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package locale maps user language requests onto the three locale taxonomies
// the pipeline needs: the translation target code, the speech synthesis
// language and the speech voice.
//
// The mapping data lives in a versioned YAML table. The default table is
// embedded; LoadFile replaces it with an operator-supplied file of the same schema.
package locale

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedLocale means no speech voice exists for the requested locale.
var ErrUnsupportedLocale = errors.New("unsupported locale")

//go:embed tables.yaml
var embeddedTables []byte

var defaultTable = mustLoad(embeddedTables)

// CanonicalLocale is the per-request result of normalization.
// Speech fields are empty when the locale has no voice.
type CanonicalLocale struct {
	TranslationCode string
	SpeechLanguage  string
	SpeechVoice     string
}

// HasVoice reports whether speech synthesis can be attempted.
func (l CanonicalLocale) HasVoice() bool {
	return l.SpeechLanguage != "" && l.SpeechVoice != ""
}

// Voice is one speech table entry.
type Voice struct {
	Language string `yaml:"language"`
	Voice    string `yaml:"voice"`
}

type tableFile struct {
	Version    int `yaml:"version"`
	Generation struct {
		SourceLanguage string `yaml:"source_language"`
	} `yaml:"generation"`
	Aliases map[string]string `yaml:"aliases"`
	Speech  map[string]Voice  `yaml:"speech"`
}

// Table is an immutable, validated set of locale mappings. Safe for concurrent use.
type Table struct {
	version         int
	sourceLanguage  string
	defaultLanguage string
	aliases         map[string]string
	speech          map[string]Voice
}

// Default returns the embedded table.
func Default() *Table {
	return defaultTable
}

// Normalize maps input through the embedded table.
func Normalize(input string) CanonicalLocale {
	return defaultTable.Normalize(input)
}

func mustLoad(data []byte) *Table {
	t, err := LoadTable(data)
	if err != nil {
		panic(fmt.Sprintf("locale: embedded tables are invalid: %v", err))
	}
	return t
}

// LoadFile reads a table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read locale tables %s: %w", path, err)
	}
	t, err := LoadTable(data)
	if err != nil {
		return nil, fmt.Errorf("locale tables %s: %w", path, err)
	}
	return t, nil
}

// LoadTable parses and validates a table. Keys that differ only by case,
// empty voice entries and aliases without a voice are rejected.
func LoadTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse locale tables: %w", err)
	}
	if f.Generation.SourceLanguage == "" {
		return nil, errors.New("generation.source_language is required")
	}
	if len(f.Speech) == 0 {
		return nil, errors.New("speech table is empty")
	}

	t := &Table{
		version:         f.Version,
		sourceLanguage:  f.Generation.SourceLanguage,
		defaultLanguage: f.Generation.SourceLanguage,
		aliases:         make(map[string]string, len(f.Aliases)),
		speech:          make(map[string]Voice, len(f.Speech)),
	}

	for _, key := range sortedKeys(f.Speech) {
		v := f.Speech[key]
		if strings.TrimSpace(key) == "" {
			return nil, errors.New("speech table has an empty key")
		}
		if v.Language == "" || v.Voice == "" {
			return nil, fmt.Errorf("speech entry %q needs both language and voice", key)
		}
		lower := strings.ToLower(key)
		if _, dup := t.speech[lower]; dup {
			return nil, fmt.Errorf("speech entry %q duplicates another key ignoring case", key)
		}
		t.speech[lower] = v
	}

	for _, key := range sortedKeys(f.Aliases) {
		target := strings.TrimSpace(f.Aliases[key])
		lower := strings.ToLower(strings.TrimSpace(key))
		if lower == "" || target == "" {
			return nil, fmt.Errorf("alias %q is empty", key)
		}
		if _, dup := t.aliases[lower]; dup {
			return nil, fmt.Errorf("alias %q duplicates another key ignoring case", key)
		}
		if _, ok := t.lookupVoice(target); !ok {
			return nil, fmt.Errorf("alias %q points at %q, which has no speech entry", key, target)
		}
		t.aliases[lower] = target
	}

	if _, ok := t.lookupVoice(t.sourceLanguage); !ok {
		return nil, fmt.Errorf("generation.source_language %q has no speech entry", t.sourceLanguage)
	}

	return t, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithDefault returns a copy of t that maps empty input to code.
func (t *Table) WithDefault(code string) *Table {
	if code == "" {
		return t
	}
	cp := *t
	cp.defaultLanguage = code
	return &cp
}

// Version returns the table version.
func (t *Table) Version() int {
	return t.version
}

// SourceLanguage is the fixed language generated narratives are written in.
func (t *Table) SourceLanguage() string {
	return t.sourceLanguage
}

// DefaultLanguage is used for empty requests.
func (t *Table) DefaultLanguage() string {
	return t.defaultLanguage
}

// VoiceCount returns the number of speech entries.
func (t *Table) VoiceCount() int {
	return len(t.speech)
}

// TranslationCode maps a raw request to a translation target code.
// Aliases win; otherwise the input is canonicalized as BCP 47 when it parses
// and passed through trimmed when it does not.
func (t *Table) TranslationCode(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return t.defaultLanguage
	}
	if code, ok := t.aliases[strings.ToLower(trimmed)]; ok {
		return code
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	return tag.String()
}

// Resolve normalizes input and fails with ErrUnsupportedLocale when no voice exists.
func (t *Table) Resolve(input string) (CanonicalLocale, error) {
	loc := t.Normalize(input)
	if !loc.HasVoice() {
		return loc, fmt.Errorf("%w: %q", ErrUnsupportedLocale, loc.TranslationCode)
	}
	return loc, nil
}

// Normalize never fails. Speech fields stay empty when no voice matches.
func (t *Table) Normalize(input string) CanonicalLocale {
	code := t.TranslationCode(input)
	loc := CanonicalLocale{TranslationCode: code}
	if v, ok := t.lookupVoice(code); ok {
		loc.SpeechLanguage = v.Language
		loc.SpeechVoice = v.Voice
	}
	return loc
}

// lookupVoice tries the full code, then the base subtag.
func (t *Table) lookupVoice(code string) (Voice, bool) {
	lower := strings.ToLower(code)
	if v, ok := t.speech[lower]; ok {
		return v, true
	}
	if base, _, found := strings.Cut(lower, "-"); found {
		if v, ok := t.speech[base]; ok {
			return v, true
		}
	}
	return Voice{}, false
}
