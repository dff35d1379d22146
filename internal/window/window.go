package window

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Class is the two-part WM_CLASS identifier of an application.
type Class struct {
	Instance string `json:"instance"`
	Class    string `json:"class"`
}

// Window is a snapshot of the focused window taken when the focus change was detected.
type Window struct {
	Title string `json:"title"`
	Class Class  `json:"class"`
}

func (w Window) String() string {
	return fmt.Sprintf("%q (%s/%s)", w.Title, w.Class.Instance, w.Class.Class)
}

// ParseClass splits a raw WM_CLASS value ("instance\0class\0").
// Anything after the second segment is ignored.
func ParseClass(raw string) (Class, bool) {
	instance, rest, ok := strings.Cut(raw, "\x00")
	if !ok || rest == "" {
		return Class{}, false
	}
	class, _, _ := strings.Cut(rest, "\x00")
	return Class{Instance: instance, Class: class}, true
}

// decodeText validates a STRING/UTF8_STRING property value.
func decodeText(property string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrPropertyData, property)
	}
	return string(raw), nil
}

func decodeClass(raw []byte) (Class, error) {
	text, err := decodeText("WM_CLASS", raw)
	if err != nil {
		return Class{}, err
	}
	class, ok := ParseClass(text)
	if !ok {
		return Class{}, fmt.Errorf("%w: unexpected WM_CLASS format %q", ErrPropertyData, text)
	}
	return class, nil
}
