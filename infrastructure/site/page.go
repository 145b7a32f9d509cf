package site

import (
	"bytes"
	"fmt"
	"html"
	"strings"
)

// link is one navigation entry. An empty href marks the current page,
// which is rendered in bold instead of as a link.
type link struct {
	name string
	href string
}

// Breadcrumb trails, keyed by page section.
var crumbs = map[string][]link{
	"batches": {
		{"Dashboard", "../index.md"},
		{"Batches", "index.md"},
	},
	"batches/batch": {
		{"Dashboard", "../../index.md"},
		{"Batches", "../index.md"},
		{"Batch", "index.md"},
	},
	"tasks": {
		{"Dashboard", "../index.md"},
		{"Tasks", "index.md"},
	},
	"tasks/task": {
		{"Dashboard", "../../index.md"},
		{"Tasks", "../index.md"},
		{"Task", "index.md"},
	},
	"tasks/task/drops": {
		{"Dashboard", "../../../index.md"},
		{"Tasks", "../../index.md"},
		{"Task", "../index.md"},
		{"Drops", "index.md"},
	},
	"tasks/task/drops/drop": {
		{"Dashboard", "../../../index.md"},
		{"Tasks", "../../index.md"},
		{"Task", "../index.md"},
		{"Drops", "index.md"},
		{"Drop", ""},
	},
	"evaluations": {
		{"Dashboard", "../index.md"},
		{"Evaluations", "index.md"},
	},
	"evaluations/evaluation": {
		{"Dashboard", "../../index.md"},
		{"Evaluations", "../index.md"},
		{"Evaluation", "index.md"},
	},
	"evaluations/evaluation/predictions": {
		{"Dashboard", "../../../index.md"},
		{"Evaluations", "../../index.md"},
		{"Evaluation", "../index.md"},
		{"Predictions", "index.md"},
	},
	"evaluations/evaluation/reports": {
		{"Dashboard", "../../../index.md"},
		{"Evaluations", "../../index.md"},
		{"Evaluation", "../index.md"},
		{"Reports", "index.md"},
	},
}

// Subpage menus, keyed by page section. Prediction and report pages share
// one menu.
var menus = map[string][]link{
	"batches/batch": {
		{"batch", "index.md"},
		{"files", "files.md"},
		{"content", "content.md"},
		{"tasks", "tasks.md"},
		{"use in evaluation", "evaluation.md"},
	},
	"tasks/task": {
		{"task", "index.md"},
		{"readme", "readme_file.md"},
		{"gold files", "golds.md"},
		{"data drops", "drops/index.md"},
		{"batches", "batches.md"},
		{"script", "script.md"},
	},
	"evaluations/evaluation": {
		{"evaluation", "index.md"},
		{"readme", "readme_file.md"},
		{"code", "code.md"},
		{"predictions", "predictions/index.md"},
		{"reports", "reports/index.md"},
	},
	"evaluations/evaluation/results": {
		{"evaluation", "../index.md"},
		{"readme", "../readme_file.md"},
		{"code", "../code.md"},
		{"predictions", "../predictions/index.md"},
		{"reports", "../reports/index.md"},
	},
}

// current drops the link of the entry named name.
func current(links []link, name string) []link {
	out := make([]link, len(links))
	for i, l := range links {
		if l.name == name {
			l.href = ""
		}
		out[i] = l
	}
	return out
}

// page accumulates the markdown of one output file.
type page struct {
	buf bytes.Buffer
}

func (p *page) String() string { return p.buf.String() }

func (p *page) write(s string) { p.buf.WriteString(s) }

func (p *page) printf(format string, args ...any) { fmt.Fprintf(&p.buf, format, args...) }

// breadcrumbs writes the trail for section with the entry named here as
// the current page.
func (p *page) breadcrumbs(section, here string) {
	for i, l := range current(crumbs[section], here) {
		if i > 0 {
			p.write(" &nbsp; > &nbsp; ")
		}
		if l.href == "" {
			p.printf("**%s** ", l.name)
		} else {
			p.printf("[%s](%s) ", l.name, l.href)
		}
	}
	p.write("\n")
}

// subpages writes the subpage menu for section.
func (p *page) subpages(section, here string) {
	for i, l := range current(menus[section], here) {
		if i > 0 {
			p.write("| ")
		}
		if l.href == "" {
			p.printf("**%s** ", l.name)
		} else {
			p.printf("[%s](%s) ", l.name, l.href)
		}
	}
	p.write("\n\n")
}

func (p *page) header(parts ...string) {
	p.printf("\n# %s\n\n", strings.Join(parts, " &nbsp; ⎯ &nbsp; "))
}

func (p *page) subheader(text string) { p.printf("#### %s\n\n", text) }

func (p *page) para(format string, args ...any) {
	p.printf(format, args...)
	p.write("\n\n")
}

// tableHeader starts a table. Each byte of align is 'l' or 'r' for the
// matching column.
func (p *page) tableHeader(align string, headers ...string) {
	rule := make([]string, len(headers))
	for i := range headers {
		rule[i] = ":------"
		if i < len(align) && align[i] == 'r' {
			rule[i] = "------:"
		}
	}
	p.printf("| %s |\n", strings.Join(headers, " | "))
	p.printf("| %s |\n", strings.Join(rule, " | "))
}

func (p *page) tableRow(cells ...any) {
	strs := make([]string, len(cells))
	for i, c := range cells {
		strs[i] = strings.ReplaceAll(fmt.Sprint(c), "|", `\|`)
	}
	p.printf("| %s |\n", strings.Join(strs, " | "))
}

func (p *page) endTable() { p.write("\n") }

func (p *page) item(format string, args ...any) {
	p.write("1. ")
	p.printf(format, args...)
	p.write("\n")
}

func (p *page) code(text, language string) {
	p.printf("```%s\n%s\n```\n", language, strings.TrimRight(text, "\n"))
}

func (p *page) pre(text string) {
	p.printf("<pre>\n%s\n</pre>\n\n", html.EscapeString(strings.TrimSpace(text)))
}

func (p *page) warning(format string, args ...any) {
	p.write("🟠 *Warning: ")
	p.printf(format, args...)
	p.write("*\n\n")
}

// mdLink renders a markdown link, or plain text when href is empty.
func mdLink(text, href string) string {
	if href == "" {
		return text
	}
	return "[" + text + "](" + href + ")"
}
