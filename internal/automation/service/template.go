package service

import (
	"fmt"
	"regexp"
	"strings"
)

var templateToken = regexp.MustCompile(`\{\{(\w+(?:\.\w+)*)\}\}`)

// ResolveTemplate substitutes {{path.to.value}} tokens in template with
// values from payload, walking nested maps by dot-separated path. Missing or
// non-map segments resolve to the empty string; a half-personalized message
// beats no message. The function is total and never fails.
func ResolveTemplate(template string, payload map[string]any) string {
	return templateToken.ReplaceAllStringFunc(template, func(token string) string {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{{"), "}}")

		var value any = payload
		for _, part := range strings.Split(path, ".") {
			object, ok := value.(map[string]any)
			if !ok {
				return ""
			}
			value = object[part]
		}

		if value == nil {
			return ""
		}
		return fmt.Sprint(value)
	})
}
