package contentcore

import "golang.org/x/text/language"

// FallbackLocale is used when no caller default locale is known.
const FallbackLocale = "en"

// CheckLocale reports whether locale is a well-formed BCP 47 language tag
// such as "en", "de-AT" or "zh-Hans".
func CheckLocale(locale string) bool {
	if locale == "" {
		return false
	}
	_, err := language.Parse(locale)
	return err == nil
}
