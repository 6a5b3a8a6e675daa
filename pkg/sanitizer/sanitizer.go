package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func SanitizeResidentName(input string) string {
	p := Pipeline{
		dropControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}

func SanitizeApartment(input string) string {
	p := Pipeline{
		dropControl,
		TrimAndNormalize,
		strings.ToUpper,
	}
	return p.Apply(input)
}

func SanitizeIdentifier(input string) string {
	return strings.TrimSpace(dropControl(input))
}
