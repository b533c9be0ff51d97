package ideas

import (
	"fmt"
	"strings"

	"github.com/kalambet/partsbin/internal/catalog"
)

const systemPrompt = "You help electronics hobbyists. Suggest practical projects that can be built " +
	"mostly from the parts the user already owns. Be concise and concrete."

// BuildPrompt lists the components with their quantities and asks for ideas.
func BuildPrompt(components []catalog.Component, reg *catalog.Registry) string {
	var sb strings.Builder
	sb.WriteString("I have the following electronic components:\n")
	for _, c := range components {
		fmt.Fprintf(&sb, "- %d x %s %s", c.Quantity, reg.DisplayName(c.Type), c.PartNumber)
		if v := reg.ValueOf(c); v != "" {
			fmt.Fprintf(&sb, " (%s)", v)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nSuggest 3 to 5 projects I could build with these parts. For each project give " +
		"a short title, a one-paragraph description, which of my parts it uses, and any common " +
		"extra parts I would need.")
	return sb.String()
}
