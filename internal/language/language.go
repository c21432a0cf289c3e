// Package language is the registry of recognition locales the capture
// engines accept.
package language

// Locale represents a supported recognition locale
type Locale struct {
	Tag        string // BCP-47 tag (e.g., "ar-SA")
	Name       string // English name
	NativeName string // Native name
}

// locales is the master list. Arabic variants first; they are the primary
// audience, the rest exist for mixed-language material.
var locales = []Locale{
	{Tag: "ar-SA", Name: "Arabic (Saudi Arabia)", NativeName: "العربية (السعودية)"},
	{Tag: "ar-EG", Name: "Arabic (Egypt)", NativeName: "العربية (مصر)"},
	{Tag: "ar-MA", Name: "Arabic (Morocco)", NativeName: "العربية (المغرب)"},
	{Tag: "ar-AE", Name: "Arabic (UAE)", NativeName: "العربية (الإمارات)"},
	{Tag: "ar-JO", Name: "Arabic (Jordan)", NativeName: "العربية (الأردن)"},
	{Tag: "ar-LB", Name: "Arabic (Lebanon)", NativeName: "العربية (لبنان)"},
	{Tag: "ar-IQ", Name: "Arabic (Iraq)", NativeName: "العربية (العراق)"},
	{Tag: "ar-DZ", Name: "Arabic (Algeria)", NativeName: "العربية (الجزائر)"},
	{Tag: "ar-TN", Name: "Arabic (Tunisia)", NativeName: "العربية (تونس)"},
	{Tag: "en-US", Name: "English (US)", NativeName: "English (US)"},
	{Tag: "en-GB", Name: "English (UK)", NativeName: "English (UK)"},
	{Tag: "fr-FR", Name: "French", NativeName: "Français"},
	{Tag: "tr-TR", Name: "Turkish", NativeName: "Türkçe"},
	{Tag: "ur-PK", Name: "Urdu", NativeName: "اردو"},
	{Tag: "fa-IR", Name: "Persian", NativeName: "فارسی"},
}

// Default is the locale used when none is configured.
var Default = locales[0]

var tagIndex map[string]Locale

func init() {
	tagIndex = make(map[string]Locale, len(locales))
	for _, l := range locales {
		tagIndex[l.Tag] = l
	}
}

// FromTag returns the Locale for the given tag.
// Returns Default if the tag is not found.
func FromTag(tag string) Locale {
	if l, ok := tagIndex[tag]; ok {
		return l
	}
	return Default
}

// List returns all supported locales
func List() []Locale {
	result := make([]Locale, len(locales))
	copy(result, locales)
	return result
}

// IsValidTag returns true if the tag is recognized
func IsValidTag(tag string) bool {
	_, ok := tagIndex[tag]
	return ok
}

// Short reduces a BCP-47 tag to its ISO-639-1 language code
// ("ar-SA" -> "ar"), which batch transcription APIs expect.
func Short(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' {
			return tag[:i]
		}
	}
	return tag
}
