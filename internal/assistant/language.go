package assistant

import (
	"github.com/abadojack/whatlanggo"

	"github.com/charlabot/charla/internal/store"
)

// prefLangNames maps an explicit language preference onto the name injected
// into the prompt.
var prefLangNames = map[string]string{
	"es": "Español",
	"en": "Inglés",
	"fr": "Francés",
}

// detectedLangNames maps whatlanggo's ISO 639-3 codes for the supported
// languages.
var detectedLangNames = map[string]string{
	"spa": "Español",
	"eng": "Inglés",
	"fra": "Francés",
}

// targetLanguage resolves the language the response should be written in.
// An explicit preference wins; "auto" falls back to detection over the
// message text, and anything unrecognised lands on Español.
func targetLanguage(pref, message string) string {
	if pref != "" && pref != store.DefaultLanguage {
		if name, ok := prefLangNames[pref]; ok {
			return name
		}
		return "Español"
	}
	info := whatlanggo.Detect(message)
	if name, ok := detectedLangNames[whatlanggo.LangToString(info.Lang)]; ok {
		return name
	}
	return "Español"
}
