// Package catalog holds the fixed set of languages voxlate can translate into.
package catalog

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is one selectable translation target.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supported = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ru", Name: "Russian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
	{Code: "ar", Name: "Arabic"},
	{Code: "hi", Name: "Hindi"},
	{Code: "bn", Name: "Bengali"},
	{Code: "pa", Name: "Punjabi"},
	{Code: "ta", Name: "Tamil"},
	{Code: "te", Name: "Telugu"},
	{Code: "mr", Name: "Marathi"},
	{Code: "gu", Name: "Gujarati"},
	{Code: "kn", Name: "Kannada"},
	{Code: "ml", Name: "Malayalam"},
	{Code: "th", Name: "Thai"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "id", Name: "Indonesian"},
	{Code: "ms", Name: "Malay"},
	{Code: "tr", Name: "Turkish"},
	{Code: "pl", Name: "Polish"},
	{Code: "uk", Name: "Ukrainian"},
	{Code: "nl", Name: "Dutch"},
	{Code: "sv", Name: "Swedish"},
	{Code: "no", Name: "Norwegian"},
	{Code: "da", Name: "Danish"},
	{Code: "fi", Name: "Finnish"},
	{Code: "el", Name: "Greek"},
	{Code: "he", Name: "Hebrew"},
	{Code: "cs", Name: "Czech"},
	{Code: "ro", Name: "Romanian"},
	{Code: "hu", Name: "Hungarian"},
	{Code: "sk", Name: "Slovak"},
	{Code: "sl", Name: "Slovenian"},
	{Code: "hr", Name: "Croatian"},
	{Code: "sr", Name: "Serbian"},
	{Code: "bg", Name: "Bulgarian"},
	{Code: "lt", Name: "Lithuanian"},
	{Code: "lv", Name: "Latvian"},
	{Code: "et", Name: "Estonian"},
	{Code: "fa", Name: "Persian"},
	{Code: "ur", Name: "Urdu"},
	{Code: "sw", Name: "Swahili"},
	{Code: "tl", Name: "Filipino"},
	{Code: "af", Name: "Afrikaans"},
	{Code: "ne", Name: "Nepali"},
	{Code: "ca", Name: "Catalan"},
}

var byCode = func() map[string]Language {
	out := make(map[string]Language, len(supported))
	for _, lang := range supported {
		out[lang.Code] = lang
	}
	return out
}()

// DefaultTarget is the initial translation target for a new session.
const DefaultTarget = "es"

// All returns a copy of the catalog in display order.
func All() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup returns the catalog entry for code after normalization.
func Lookup(code string) (Language, bool) {
	lang, ok := byCode[Normalize(code)]
	return lang, ok
}

// Contains reports whether code names a supported language.
func Contains(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// Normalize reduces a BCP 47 tag ("EN-us", "pt_BR") to its lowercase base
// language code. Deprecated codes are kept as written ("tl" stays "tl").
// Unparseable input is lowercased and trimmed.
func Normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Raw.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return strings.ToLower(tag)
	}
	base, _ := parsed.Base()
	return base.String()
}

// SpeechTag expands a base language code to the locale used for speech
// recognition and synthesis ("en" -> "en-US", "ja" -> "ja-JP").
func SpeechTag(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Raw.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.No {
		return base.String()
	}
	return base.String() + "-" + region.String()
}
