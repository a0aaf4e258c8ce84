// Package markup parses the lightweight Markdown subset used in card content:
// headings, bold, italic, inline code and bullet lines, plus #tags and
// [[wikilinks]] for indexing.
package markup

import (
	"regexp"
	"strings"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	inlineRe   = regexp.MustCompile("\\*\\*([^*]+)\\*\\*|`([^`]+)`|\\*([^*\\s][^*]*)\\*|\\b_([^_]+)_\\b")
	headingRe  = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^[-*+]\s+(.*)$`)
)

// BlockKind classifies a line of content.
type BlockKind int

// Block kinds.
const (
	Paragraph BlockKind = iota
	Heading
	Bullet
)

// SpanKind classifies an inline run.
type SpanKind int

// Span kinds.
const (
	Text SpanKind = iota
	Bold
	Italic
	Code
)

// Span is a run of inline text with one style.
type Span struct {
	Kind SpanKind
	Text string
}

// Block is one rendered line.
type Block struct {
	Kind  BlockKind
	Level int // heading level, 1-3
	Spans []Span
}

// Plain returns the block text without markup.
func (b Block) Plain() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Result holds the output of parsing card content.
type Result struct {
	Blocks []Block
	Links  []string
	Tags   []string
	Title  string
}

// Parse splits content into blocks and extracts tags, links and the first
// heading. Blank lines are dropped.
func Parse(content string) *Result {
	res := &Result{
		Links: extractLinks(content),
		Tags:  extractTags(content),
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			b := Block{Kind: Heading, Level: len(m[1]), Spans: parseInline(m[2])}
			if res.Title == "" {
				res.Title = b.Plain()
			}
			res.Blocks = append(res.Blocks, b)
			continue
		}
		if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
			res.Blocks = append(res.Blocks, Block{Kind: Bullet, Spans: parseInline(m[1])})
			continue
		}
		res.Blocks = append(res.Blocks, Block{Kind: Paragraph, Spans: parseInline(trimmed)})
	}
	return res
}

// PlainText returns content with markup removed, one block per line.
func PlainText(content string) string {
	blocks := Parse(content).Blocks
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		p := b.Plain()
		if b.Kind == Bullet {
			p = "• " + p
		}
		lines = append(lines, p)
	}
	return strings.Join(lines, "\n")
}

func parseInline(s string) []Span {
	var out []Span
	last := 0
	for _, m := range inlineRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			out = append(out, Span{Kind: Text, Text: s[last:m[0]]})
		}
		switch {
		case m[2] >= 0:
			out = append(out, Span{Kind: Bold, Text: s[m[2]:m[3]]})
		case m[4] >= 0:
			out = append(out, Span{Kind: Code, Text: s[m[4]:m[5]]})
		case m[6] >= 0:
			out = append(out, Span{Kind: Italic, Text: s[m[6]:m[7]]})
		case m[8] >= 0:
			out = append(out, Span{Kind: Italic, Text: s[m[8]:m[9]]})
		}
		last = m[1]
	}
	if last < len(s) {
		out = append(out, Span{Kind: Text, Text: s[last:]})
	}
	return out
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects inline #tags. Heading markers are not tags because
// they must be followed by whitespace.
func extractTags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
