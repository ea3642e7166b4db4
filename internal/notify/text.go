package notify

import (
	"html"
	"strings"
)

// Clean escapes HTML so user-supplied text can be embedded in a message.
func Clean(s string) string { return html.EscapeString(s) }

var markup = strings.NewReplacer(
	"{b}", "<b>", "{/b}", "</b>",
	"{i}", "<i>", "{/i}", "</i>",
	"{u}", "<u>", "{/u}", "</u>",
	"{s}", "<s>", "{/s}", "</s>",
	"{br}", "<br/>",
)

// Enrich escapes s and then expands the brace markup ({b}bold{/b}, {i}, {u},
// {s}, {br}) into HTML.
func Enrich(s string) string { return markup.Replace(Clean(s)) }

// Format substitutes {name} placeholders. Unknown placeholders are left as
// they are.
func Format(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
