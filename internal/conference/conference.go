package conference

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/segmentio/ksuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Conference struct {
	Name string `json:"name" yaml:"name" dynamodbav:"name"`
	Year int    `json:"year" yaml:"year" dynamodbav:"year"`
}

func New(name string, year int) Conference {
	return Conference{Name: name, Year: year}
}

// Title returns the name with its first character upper-cased and the rest
// lower-cased.
func (c Conference) Title() string {
	first, size := utf8.DecodeRuneInString(c.Name)
	if size == 0 {
		return ""
	}

	return string(unicode.ToUpper(first)) + cases.Lower(language.Und).String(c.Name[size:])
}

func (c *Conference) SetYear(year int) {
	c.Year = year
}

func (c Conference) String() string {
	return fmt.Sprintf("%s %d", c.Title(), c.Year)
}

func NewKey() string {
	return ksuid.New().String()
}
