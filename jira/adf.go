package jira

import "strings"

// ADF node types used when converting Markdown.
const (
	adfDoc         = "doc"
	adfParagraph   = "paragraph"
	adfText        = "text"
	adfHeading     = "heading"
	adfBulletList  = "bulletList"
	adfOrderedList = "orderedList"
	adfListItem    = "listItem"
	adfCodeBlock   = "codeBlock"
	adfRule        = "rule"
)

// ADFDocument is an Atlassian Document Format document.
type ADFDocument struct {
	Version int       `json:"version"`
	Type    string    `json:"type"`
	Content []ADFNode `json:"content"`
}

// ADFNode is one node of an ADF tree.
type ADFNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []ADFNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
}

func textNode(s string) ADFNode {
	return ADFNode{Type: adfText, Text: s}
}

func paragraph(s string) ADFNode {
	return ADFNode{Type: adfParagraph, Content: []ADFNode{textNode(s)}}
}

func list(kind string, items []string) ADFNode {
	node := ADFNode{Type: kind}
	for _, item := range items {
		node.Content = append(node.Content, ADFNode{Type: adfListItem, Content: []ADFNode{paragraph(item)}})
	}
	return node
}

// MarkdownToADF converts the Markdown subset produced by the workflow
// (headings, bullet and numbered lists, fenced code, rules, paragraphs)
// into ADF. Inline formatting is kept as literal text.
func MarkdownToADF(markdown string) *ADFDocument {
	doc := &ADFDocument{Version: 1, Type: adfDoc, Content: []ADFNode{}}
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			i++

		case strings.HasPrefix(trimmed, "```"):
			lang := strings.TrimPrefix(trimmed, "```")
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				code = append(code, lines[i])
			}
			i++ // closing fence
			node := ADFNode{Type: adfCodeBlock, Content: []ADFNode{textNode(strings.Join(code, "\n"))}}
			if lang != "" {
				node.Attrs = map[string]any{"language": lang}
			}
			doc.Content = append(doc.Content, node)

		case trimmed == "---" || trimmed == "***":
			doc.Content = append(doc.Content, ADFNode{Type: adfRule})
			i++

		case headingLevel(trimmed) > 0:
			level := headingLevel(trimmed)
			doc.Content = append(doc.Content, ADFNode{
				Type:    adfHeading,
				Attrs:   map[string]any{"level": level},
				Content: []ADFNode{textNode(strings.TrimSpace(trimmed[level:]))},
			})
			i++

		case bulletItem(trimmed) != "":
			var items []string
			for ; i < len(lines) && bulletItem(strings.TrimSpace(lines[i])) != ""; i++ {
				items = append(items, bulletItem(strings.TrimSpace(lines[i])))
			}
			doc.Content = append(doc.Content, list(adfBulletList, items))

		case orderedItem(trimmed) != "":
			var items []string
			for ; i < len(lines) && orderedItem(strings.TrimSpace(lines[i])) != ""; i++ {
				items = append(items, orderedItem(strings.TrimSpace(lines[i])))
			}
			doc.Content = append(doc.Content, list(adfOrderedList, items))

		default:
			// consecutive text lines form one paragraph
			var text []string
			for ; i < len(lines) && isPlain(lines[i]); i++ {
				text = append(text, strings.TrimSpace(lines[i]))
			}
			if len(text) == 0 {
				text = append(text, trimmed)
				i++
			}
			doc.Content = append(doc.Content, paragraph(strings.Join(text, " ")))
		}
	}
	return doc
}

func headingLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}

func bulletItem(line string) string {
	for _, p := range []string{"- ", "* "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):])
		}
	}
	return ""
}

func orderedItem(line string) string {
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits == 0 || !strings.HasPrefix(line[digits:], ". ") {
		return ""
	}
	return strings.TrimSpace(line[digits+2:])
}

func isPlain(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "```") && t != "---" && t != "***" &&
		headingLevel(t) == 0 && bulletItem(t) == "" && orderedItem(t) == ""
}
