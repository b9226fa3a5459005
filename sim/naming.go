package sim

import (
	"strings"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// NameMustBeValid panics if the name does not follow the naming convention.
// A valid name is a dot-separated hierarchy (e.g., "GPU[0].CE.HostPort") where
// every element is non-empty, starts with a capital letter, contains no
// underscore, dash, or quote, and uses square brackets only in matched pairs.
func NameMustBeValid(name string) {
	if name == "" {
		panic("name must not be empty")
	}

	for _, elem := range strings.Split(name, ".") {
		nameElemMustBeValid(name, elem)
	}
}

func nameElemMustBeValid(name, elem string) {
	if elem == "" {
		panic("name " + name + " has an empty element")
	}

	if strings.ContainsAny(elem, "_\"'-") {
		panic("name " + name + " contains an invalid character")
	}

	if elem[0] < 'A' || elem[0] > 'Z' {
		panic("name " + name + " must use capitalized elements")
	}

	depth := 0
	for _, c := range elem {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				panic("name " + name + " has unmatched brackets")
			}
		}
	}

	if depth != 0 {
		panic("name " + name + " has unmatched brackets")
	}
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}
