package weatherapi

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

const (
	unknownValidationError = "Unknown validation error"
	unknownError           = "Unknown error"
)

// validationMessage extracts the text to show for a 400 response.
//
// The top-level fields of a JSON object are visited in the order they appear
// on the wire. The first field holding a non-empty array contributes its first
// element, the first field holding a string contributes the string. Bodies that
// are not a non-empty JSON object fall back to the raw text.
func validationMessage(raw []byte) string {
	msg, fields, ok := firstFieldMessage(raw)
	if ok {
		return msg
	}
	if fields > 0 {
		return unknownValidationError
	}
	if len(raw) == 0 {
		return unknownError
	}
	return string(raw)
}

// firstFieldMessage returns the message found, the number of fields visited
// and whether a message was found. fields is zero when raw is not a JSON object.
func firstFieldMessage(raw []byte) (msg string, fields int, found bool) {
	if !gjson.ValidBytes(raw) {
		return "", 0, false
	}
	body := gjson.ParseBytes(raw)
	if !body.IsObject() {
		return "", 0, false
	}

	body.ForEach(func(_, value gjson.Result) bool {
		fields++
		msg, found = fieldMessage(value)
		return !found
	})
	return msg, fields, found
}

func fieldMessage(value gjson.Result) (string, bool) {
	switch {
	case value.Type == gjson.String:
		return value.String(), true
	case value.IsArray():
		items := value.Array()
		if len(items) == 0 {
			return "", false
		}
		return elementText(items[0]), true
	default:
		return "", false
	}
}

// elementText prints strings without quotes and anything else as compact JSON
func elementText(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.String()
	}
	return string(pretty.Ugly([]byte(item.Raw)))
}
