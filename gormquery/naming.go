package gormquery

import (
	"strings"
)

var acronyms = map[string]bool{
	"id":   true,
	"url":  true,
	"uri":  true,
	"api":  true,
	"json": true,
	"sql":  true,
	"uuid": true,
	"uid":  true,
	"ip":   true,
	"html": true,
	"cdn":  true,
	"gps":  true,
	"led":  true,
	"lcd":  true,
	"tv":   true,
	"sku":  true,
}

// SmartPascalCase converts camelCase or snake_case to PascalCase with proper handling of common acronyms,
// so that "screenId" and "screen_id" both become "ScreenID".
func SmartPascalCase(s string) string {
	if s == "" {
		return s
	}

	var words []string
	var currentWord strings.Builder

	flush := func() {
		if currentWord.Len() > 0 {
			words = append(words, strings.ToLower(currentWord.String()))
			currentWord.Reset()
		}
	}

	for i, r := range s {
		switch {
		case r == '_' || r == '-':
			flush()
			continue
		case i > 0 && r >= 'A' && r <= 'Z':
			flush()
		}
		currentWord.WriteRune(r)
	}
	flush()

	var result strings.Builder
	for _, word := range words {
		if acronyms[word] {
			result.WriteString(strings.ToUpper(word))
			continue
		}
		result.WriteString(strings.ToUpper(word[:1]) + word[1:])
	}
	return result.String()
}
