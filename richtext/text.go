package richtext

import "strings"

// ToPlainText concatenates the text leaves of doc, joining siblings with a
// single space. No tags are emitted and nothing is escaped.
func ToPlainText(doc *Node) string {
	if !doc.IsDocument() {
		return ""
	}
	return strings.TrimSpace(extractText(doc.Content))
}

func extractText(nodes []*Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		switch {
		case n == nil:
			parts = append(parts, "")
		case n.NodeType == Text:
			parts = append(parts, n.Value)
		default:
			parts = append(parts, extractText(n.Content))
		}
	}
	return strings.Join(parts, " ")
}
