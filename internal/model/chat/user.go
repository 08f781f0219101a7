package chat

import (
	"os"
	"strings"
)

// Language is an ISO 639-1 language code carried on users and messages.
type Language string

const (
	Korean   Language = "ko"
	English  Language = "en"
	Japanese Language = "ja"
	Chinese  Language = "zh"
	French   Language = "fr"
	Spanish  Language = "es"
)

// DefaultLanguage is used when neither configuration nor locale name one.
const DefaultLanguage = English

func (l Language) Code() string {
	return string(l)
}

// ParseLanguage normalizes a language code, falling back to the default
// for unknown or empty input.
func ParseLanguage(code string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(code))) {
	case Korean:
		return Korean
	case English:
		return English
	case Japanese:
		return Japanese
	case Chinese:
		return Chinese
	case French:
		return French
	case Spanish:
		return Spanish
	default:
		return DefaultLanguage
	}
}

// LocaleLanguage derives the viewer's default language from the process
// locale, e.g. LANG=ko_KR.UTF-8 yields "ko".
func LocaleLanguage() Language {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" || raw == "C" || raw == "POSIX" {
			continue
		}
		if idx := strings.IndexAny(raw, "_.@"); idx > 0 {
			raw = raw[:idx]
		}
		return ParseLanguage(raw)
	}
	return DefaultLanguage
}

// User identifies one room participant.
type User struct {
	ID        int64    `json:"id"`
	Nickname  string   `json:"nickname"`
	AvatarURL string   `json:"avatarUrl"`
	Language  Language `json:"language"`
}
