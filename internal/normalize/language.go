package normalize

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Locale is a supported interface language.
// Code is the value stored in a profile; Label is the name shown in the picker.
type Locale struct {
	Code    string
	Label   string
	Tag     language.Tag
	Aliases []string
}

// locales is the closed catalog of supported locale codes, in picker order.
var locales = []Locale{
	{Code: "cn", Label: "简体中文", Tag: language.SimplifiedChinese, Aliases: []string{"中文", "Chinese"}},
	{Code: "en", Label: "English", Tag: language.English},
	{Code: "tw", Label: "繁體中文", Tag: language.TraditionalChinese},
	{Code: "pt", Label: "Português", Tag: language.Portuguese},
	{Code: "da", Label: "Dansk", Tag: language.Danish},
	{Code: "jp", Label: "日本語", Tag: language.Japanese},
	{Code: "ko", Label: "한국어", Tag: language.Korean},
	{Code: "id", Label: "Indonesia", Tag: language.Indonesian},
	{Code: "fr", Label: "Français", Tag: language.French},
	{Code: "es", Label: "Español", Tag: language.Spanish},
	{Code: "it", Label: "Italiano", Tag: language.Italian},
	{Code: "tr", Label: "Türkçe", Tag: language.Turkish},
	{Code: "de", Label: "Deutsch", Tag: language.German},
	{Code: "vi", Label: "Tiếng Việt", Tag: language.Vietnamese},
	{Code: "ru", Label: "Русский", Tag: language.Russian},
	{Code: "cs", Label: "Čeština", Tag: language.Czech},
	{Code: "no", Label: "Nynorsk", Tag: language.Norwegian},
	{Code: "ar", Label: "العربية", Tag: language.Arabic},
	{Code: "bn", Label: "বাংলা", Tag: language.Bengali},
	{Code: "sk", Label: "Slovensky", Tag: language.Slovak},
}

var (
	languageOnce    sync.Once
	languageCodes   map[string]bool
	languageByLabel map[string]string // lower-cased label -> code
)

func loadLanguageTables() {
	languageCodes = make(map[string]bool, len(locales))
	languageByLabel = make(map[string]string, len(locales)*3)
	english := display.English.Languages()

	for _, l := range locales {
		languageCodes[l.Code] = true
		labels := append([]string{l.Label, display.Self.Name(l.Tag), english.Name(l.Tag)}, l.Aliases...)
		for _, label := range labels {
			key := strings.ToLower(strings.TrimSpace(label))
			if key == "" {
				continue
			}
			// First locale to claim a label keeps it.
			if _, taken := languageByLabel[key]; !taken {
				languageByLabel[key] = l.Code
			}
		}
	}
}

// Locales returns the supported locale catalog in picker order.
func Locales() []Locale {
	out := make([]Locale, len(locales))
	copy(out, locales)
	return out
}

// IsLanguageCode reports whether code is a supported locale code.
func IsLanguageCode(code string) bool {
	languageOnce.Do(loadLanguageTables)
	return languageCodes[code]
}

// Language canonicalizes a preferred-language value.
//
// Empty input stays empty ("unset"). A supported code is returned as is. A
// human-readable label (picker label, the language's own name, or its
// English name, case-insensitive) is mapped back to its code. Anything else
// is returned trimmed.
func Language(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	languageOnce.Do(loadLanguageTables)
	if languageCodes[trimmed] {
		return trimmed
	}
	if code, ok := languageByLabel[strings.ToLower(trimmed)]; ok {
		return code
	}
	return trimmed
}
