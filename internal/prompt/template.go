package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a named prompt with {{variable}} placeholders.
type Template struct {
	Name string
	Text string
}

// Render fills every placeholder. A variable missing from vars is an error
// so a half-filled prompt never reaches a model.
func (t Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, v := range t.Variables() {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s: missing variables: %s", t.Name, strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// Variables lists placeholder names in order of first appearance.
func (t Template) Variables() []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range variablePattern.FindAllStringSubmatch(t.Text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}
