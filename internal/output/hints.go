package output

import (
	"fmt"
	"strings"
)

// CommandHints maps command names to related commands users might want to run next
var CommandHints = map[string][]string{
	"login":          {"status", "latest"},
	"signup":         {"status", "latest"},
	"logout":         {"login"},
	"status":         {"login", "logout"},
	"latest":         {"blog <id>", "search"},
	"search":         {"blog <id>"},
	"categories":     {"subcategories <category-id>"},
	"subcategories":  {"browse <category-id> <subcategory-id>"},
	"browse":         {"blog <id>"},
	"blog":           {"comment add <blog-id> <text>", "rate <blog-id> <1-5>"},
	"comment add":    {"blog <id>"},
	"comment delete": {"blog <id>"},
	"rate":           {"blog <id>"},
}

// PrintHints prints "See also" hints for a command. No-op in quiet mode or if command has no hints.
func (p *Printer) PrintHints(command string) {
	if p.quiet {
		return
	}
	hints, ok := CommandHints[command]
	if !ok || len(hints) == 0 {
		return
	}

	cmds := make([]string, len(hints))
	for i, h := range hints {
		cmds[i] = "blogportal " + h
	}
	fmt.Fprintf(p.out, "\nSee also: %s\n", strings.Join(cmds, ", "))
}
