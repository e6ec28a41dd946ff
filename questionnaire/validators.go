package questionnaire

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	minEssayLength   = 400
	minVoiceDuration = 10
	minAge           = 10
	maxAge           = 100
)

// ValidateName accepts full names: letters and whitespace only, at least two
// words.
func ValidateName(name string) bool {
	name = strings.TrimSpace(name)
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return len(strings.Fields(name)) >= 2
}

// ValidateAge accepts integer ages between 10 and 100 inclusive.
func ValidateAge(age string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(age))
	if err != nil {
		return false
	}
	return n >= minAge && n <= maxAge
}

// ValidateEmail is a deliberately loose shape check: exactly one "@" and at
// least one ".".
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	return strings.Count(email, "@") == 1 && strings.Contains(email, ".")
}

// ValidateEssayLength checks the minimum essay size. Returns a user-facing
// rejection reason on failure.
func ValidateEssayLength(text string) (bool, string) {
	if len([]rune(strings.TrimSpace(text))) < minEssayLength {
		return false, "Ваш ответ должен содержать не менее 50 слов (400 символов). Пожалуйста, попробуйте еще раз."
	}
	return true, ""
}

// ValidateVoice checks that a voice answer is present and long enough.
// Duration is in seconds.
func ValidateVoice(hasVoice bool, duration int) (bool, string) {
	if !hasVoice {
		return false, "Пожалуйста, отправьте голосовое сообщение."
	}
	if duration < minVoiceDuration {
		return false, "Ваше голосовое сообщение должно быть не менее 10 секунд. Пожалуйста, попробуйте еще раз."
	}
	return true, ""
}
