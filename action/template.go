package action

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xraph/beacon/condition"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render substitutes {{field}} placeholders from the subject snapshot and
// {{vars.name}} placeholders from run variables. Unknown placeholders
// render as the empty string.
func Render(tmpl string, env condition.Env) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]

		var (
			v  any
			ok bool
		)
		if rest, isVar := strings.CutPrefix(path, "vars."); isVar {
			v, ok = condition.Lookup(env.Variables, rest)
		} else {
			v, ok = condition.Lookup(env.Subject, path)
		}
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
