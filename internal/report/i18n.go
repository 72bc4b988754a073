package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Language represents a supported localization code.
type Language string

const (
	// LangEnglish renders the report in English.
	LangEnglish Language = "en"
	// LangTurkish renders the report in Turkish.
	LangTurkish Language = "tr"
)

// ErrUnsupportedLanguage is returned when an unknown language code is requested.
var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed en.json tr.json
var localeFS embed.FS

var locales = map[Language]map[string]string{}

func init() {
	mustLoadLocale(LangEnglish, "en.json")
	mustLoadLocale(LangTurkish, "tr.json")
}

func mustLoadLocale(lang Language, file string) {
	data, err := localeFS.ReadFile(file)
	if err != nil {
		panic(fmt.Sprintf("report: load locale %s: %v", lang, err))
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err != nil {
		panic(fmt.Sprintf("report: parse locale %s: %v", lang, err))
	}
	locales[lang] = parsed
}

// Translator resolves localized strings for a specific language.
type Translator struct {
	lang Language
	data map[string]string
}

// NewTranslator builds a translator for the requested language, falling back to English.
func NewTranslator(lang Language) Translator {
	data, ok := locales[lang]
	if !ok {
		lang = LangEnglish
		data = locales[LangEnglish]
	}
	return Translator{lang: lang, data: data}
}

// ParseLanguage normalizes a locale string like "tr_TR.UTF-8" into a
// supported Language.
func ParseLanguage(raw string) (Language, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(code, "_.-"); i > 0 {
		code = code[:i]
	}
	switch Language(code) {
	case LangEnglish, "":
		return LangEnglish, nil
	case LangTurkish:
		return LangTurkish, nil
	default:
		return LangEnglish, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, raw)
	}
}

// T returns the localized string for key, or the key itself when missing.
func (t Translator) T(key string) string {
	if v, ok := t.data[key]; ok {
		return v
	}
	if t.lang != LangEnglish {
		if v, ok := locales[LangEnglish][key]; ok {
			return v
		}
	}
	return key
}

// Lang returns the resolved language.
func (t Translator) Lang() Language { return t.lang }
