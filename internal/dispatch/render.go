package dispatch

import "strings"

// Render substitutes {variable} placeholders in body with values from vars.
// Placeholders with no matching variable stay literal so a partially
// populated alert (say, unknown location) still produces a message.
func Render(body string, vars map[string]string) string {
	if len(vars) == 0 {
		return body
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
