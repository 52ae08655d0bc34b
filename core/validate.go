package core

import (
	"unicode"
	"unicode/utf8"
)

func validateID(id, label string) error {
	if id == "" {
		return validationErrorf("%s must not be empty", label)
	}
	if len(id) > MaxIDLength {
		return validationErrorf("%s exceeds maximum length of %d", label, MaxIDLength)
	}
	if !utf8.ValidString(id) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	for _, r := range id {
		if r == ':' || r == '/' {
			return validationErrorf("%s contains forbidden character %q", label, r)
		}
		if unicode.IsControl(r) {
			return validationErrorf("%s contains control character", label)
		}
	}
	return nil
}

func validateText(value, label string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return validationErrorf("%s must not be empty", label)
		}
		return nil
	}
	if len(value) > maxLen {
		return validationErrorf("%s exceeds maximum length of %d", label, maxLen)
	}
	if !utf8.ValidString(value) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return validationErrorf("%s contains control character", label)
		}
	}
	return nil
}

func validateContact(name, address string) error {
	if err := validateText(name, "contact name", MaxNameLength, true); err != nil {
		return err
	}
	return validateText(address, "contact address", MaxAddressLength, true)
}

func validateMessageBody(body string) error {
	if body == "" {
		return validationErrorf("message body must not be empty")
	}
	if len(body) > MaxMessageSize {
		return validationErrorf("message body size %d exceeds maximum of %d bytes", len(body), MaxMessageSize)
	}
	if !utf8.ValidString(body) {
		return validationErrorf("message body contains invalid UTF-8")
	}
	return nil
}

func validateSettings(s Settings) error {
	if err := validateText(s.DisplayName, "display name", MaxDisplayNameLength, false); err != nil {
		return err
	}
	switch s.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
		return nil
	default:
		return validationErrorf("invalid theme %q", s.Theme)
	}
}
