package indicator

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

type messages struct {
	listening  string
	processing string
	errorText  string
	translated string // format: source, target
}

// catalog order matters: the first entry is the matcher's fallback.
var (
	uiLanguages = []language.Tag{language.English, language.Spanish, language.French, language.German}
	uiMessages  = map[language.Tag]messages{
		language.English: {
			listening:  "Listening…",
			processing: "Transcribing…",
			errorText:  "Speech recognition error",
			translated: "Translation %s → %s",
		},
		language.Spanish: {
			listening:  "Escuchando…",
			processing: "Transcribiendo…",
			errorText:  "Error de reconocimiento de voz",
			translated: "Traducción %s → %s",
		},
		language.French: {
			listening:  "Écoute…",
			processing: "Transcription…",
			errorText:  "Erreur de reconnaissance vocale",
			translated: "Traduction %s → %s",
		},
		language.German: {
			listening:  "Höre zu…",
			processing: "Transkribiere…",
			errorText:  "Fehler bei der Spracherkennung",
			translated: "Übersetzung %s → %s",
		},
	}
	uiMatcher = language.NewMatcher(uiLanguages)
)

func indicatorMessagesFromEnv() messages {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if raw := os.Getenv(key); raw != "" {
			return indicatorMessages(resolveLocale(raw))
		}
	}
	return indicatorMessages(language.English)
}

// resolveLocale maps a POSIX locale such as "es_MX.UTF-8" to a UI language.
func resolveLocale(raw string) language.Tag {
	raw, _, _ = strings.Cut(strings.TrimSpace(raw), ".")
	raw, _, _ = strings.Cut(raw, "@")
	if raw == "" || raw == "C" || raw == "POSIX" {
		return language.English
	}
	_, index, _ := uiMatcher.Match(language.Make(strings.ReplaceAll(raw, "_", "-")))
	return uiLanguages[index]
}

func indicatorMessages(tag language.Tag) messages {
	if m, ok := uiMessages[tag]; ok {
		return m
	}
	return uiMessages[language.English]
}
