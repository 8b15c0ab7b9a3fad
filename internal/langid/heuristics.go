package langid

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var iso3ToISO1 = map[string]string{
	"eng": "en", "spa": "es", "fra": "fr", "deu": "de", "ita": "it",
	"por": "pt", "rus": "ru", "jpn": "ja", "kor": "ko", "zho": "zh",
	"cmn": "zh", "arb": "ar", "ara": "ar", "hin": "hi", "ben": "bn",
	"pan": "pa", "tam": "ta", "tel": "te", "mar": "mr", "guj": "gu",
	"kan": "kn", "mal": "ml", "tha": "th", "vie": "vi", "ind": "id",
	"msa": "ms", "tur": "tr", "pol": "pl", "ukr": "uk", "nld": "nl",
	"swe": "sv", "nor": "no", "dan": "da", "fin": "fi", "ell": "el",
	"heb": "he", "ces": "cs", "ron": "ro", "hun": "hu", "cat": "ca",
	"hrv": "hr", "slk": "sk", "slv": "sl", "srp": "sr", "bul": "bg",
	"lit": "lt", "lav": "lv", "est": "et", "fas": "fa", "urd": "ur",
	"swa": "sw", "tgl": "tl", "fil": "tl", "afr": "af", "nep": "ne",
	"sin": "si", "mya": "my", "khm": "km", "lao": "lo", "amh": "am",
	"hau": "ha", "yor": "yo", "ibo": "ig", "zul": "zu", "xho": "xh",
	"mon": "mn", "mri": "mi",
}

var nameOverrides = map[string]string{
	"zh": "Chinese",
	"ar": "Arabic",
}

var commonEnglishWords = toSet(
	"i", "my", "me", "you", "your", "we", "us", "our", "they", "them", "their",
	"is", "am", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could", "should",
	"the", "a", "an", "this", "that", "these", "those",
	"what", "who", "where", "when", "why", "how", "which",
	"and", "or", "but", "if", "then", "so", "because",
	"to", "from", "in", "on", "at", "by", "for", "with", "of",
	"hello", "hi", "hey", "yes", "no", "please", "thank", "thanks", "sorry",
	"name", "like", "want", "need", "can", "help", "know", "think", "go", "come",
	"good", "bad", "new", "old", "big", "small", "great", "nice",
	"day", "time", "year", "today", "now", "here", "there",
	"love", "work", "home", "world", "life", "people", "man", "woman",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, word := range words {
		out[word] = struct{}{}
	}
	return out
}

// ISO1FromISO3 maps an ISO 639-3 code to ISO 639-1. Unknown codes fall
// back to their first two characters.
func ISO1FromISO3(iso3 string) string {
	iso3 = strings.ToLower(strings.TrimSpace(iso3))
	if iso1, ok := iso3ToISO1[iso3]; ok {
		return iso1
	}
	if len(iso3) > 2 {
		return iso3[:2]
	}
	return iso3
}

// DisplayName returns the English name for an ISO 639-1 code.
func DisplayName(iso1 string) string {
	if name, ok := nameOverrides[iso1]; ok {
		return name
	}
	if tag, err := language.Parse(iso1); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(iso1)
}

// LikelyEnglish reports whether at least ratio of the whitespace-separated
// words are common English words.
func LikelyEnglish(text string, ratio float64) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return false
	}

	hits := 0
	for _, word := range words {
		if _, ok := commonEnglishWords[lettersOnly(word)]; ok {
			hits++
		}
	}
	return float64(hits)/float64(len(words)) >= ratio
}

func lettersOnly(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for i := 0; i < len(word); i++ {
		if ch := word[i]; ch >= 'a' && ch <= 'z' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// nonLatinRanges are the script blocks that route short text to the
// classifier instead of the English word heuristic.
var nonLatinRanges = [][2]rune{
	{0x0400, 0x04FF}, // Cyrillic
	{0x0600, 0x06FF}, // Arabic
	{0x4E00, 0x9FFF}, // CJK
	{0x3040, 0x309F}, // Hiragana
	{0x30A0, 0x30FF}, // Katakana
	{0xAC00, 0xD7AF}, // Hangul
	{0x0900, 0x097F}, // Devanagari
	{0x0980, 0x09FF}, // Bengali
	{0x0A00, 0x0A7F}, // Gurmukhi
	{0x0B00, 0x0B7F}, // Oriya
	{0x0C00, 0x0C7F}, // Telugu
	{0x0D00, 0x0D7F}, // Malayalam
	{0x0E00, 0x0E7F}, // Thai
	{0x0F00, 0x0FFF}, // Tibetan
}

// HasNonLatin reports whether text contains any rune from a tracked
// non-Latin script block.
func HasNonLatin(text string) bool {
	for _, r := range text {
		for _, span := range nonLatinRanges {
			if r >= span[0] && r <= span[1] {
				return true
			}
		}
	}
	return false
}
