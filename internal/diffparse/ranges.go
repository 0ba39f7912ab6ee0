package diffparse

import (
	"regexp"
	"strconv"
	"strings"
)

// LineRange is an inclusive, 1-based span in the modified file.
type LineRange struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// LineRanges classifies the changed lines of a diff in the modified file's
// coordinate space. Deleted entries are single anchor lines because deleted
// text occupies no line in the new file; anchor 0 means "before line 1".
type LineRanges struct {
	Added    []LineRange `json:"added"`
	Modified []LineRange `json:"modified"`
	Deleted  []int       `json:"deleted"`
}

// IsEmpty reports whether no line was classified.
func (r LineRanges) IsEmpty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

type hunkHeader struct {
	oldStart, oldLen int
	newStart, newLen int
}

func parseHunkHeader(line string) (hunkHeader, bool) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return hunkHeader{}, false
	}
	num := func(s string, def int) int {
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return def
		}
		return n
	}
	return hunkHeader{
		oldStart: num(m[1], 0),
		oldLen:   num(m[2], 1),
		newStart: num(m[3], 0),
		newLen:   num(m[4], 1),
	}, true
}

// ParseLineRanges walks a unified diff hunk by hunk and classifies changed
// lines:
//
//   - a run of removed lines directly followed by added lines pairs up
//     position for position; the paired span is modified, extra added lines
//     are added and extra removed lines leave one deleted anchor
//   - a run of added lines alone is added
//   - a run of removed lines alone leaves one deleted anchor at cursor-1
//
// Context lines advance the cursor; "\" lines are ignored. An unparseable
// hunk header is skipped and the lines under it are not classified.
func ParseLineRanges(raw string) LineRanges {
	p := rangeParser{
		out: LineRanges{
			Added:    []LineRange{},
			Modified: []LineRange{},
			Deleted:  []int{},
		},
		cursor: 1,
	}
	if raw == "" {
		return p.out
	}
	p.lines = strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	p.run()
	return p.out
}

type rangeParser struct {
	lines []string
	pos   int
	out   LineRanges

	cursor    int
	inHunk    bool
	oldRemain int
	newRemain int
}

func (p *rangeParser) run() {
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]

		if strings.HasPrefix(line, "@@") {
			p.pos++
			h, ok := parseHunkHeader(line)
			if !ok {
				p.inHunk = false
				continue
			}
			p.cursor = h.newStart
			p.oldRemain = h.oldLen
			p.newRemain = h.newLen
			p.inHunk = h.oldLen > 0 || h.newLen > 0
			continue
		}

		if !p.inHunk || strings.HasPrefix(line, "diff --git ") {
			// Outside a hunk: file headers or noise before the first hunk.
			p.inHunk = false
			p.cursor++
			p.pos++
			continue
		}

		switch {
		case strings.HasPrefix(line, `\`):
			p.pos++
		case strings.HasPrefix(line, "-") && p.oldRemain <= 0,
			strings.HasPrefix(line, "+") && p.newRemain <= 0:
			// More lines than the header announced; leave them unclassified.
			p.pos++
		case strings.HasPrefix(line, "-"):
			p.changeRun()
		case strings.HasPrefix(line, "+"):
			added := p.countRun('+')
			p.out.Added = append(p.out.Added, LineRange{StartLine: p.cursor, EndLine: p.cursor + added - 1})
			p.cursor += added
		default:
			p.cursor++
			p.oldRemain--
			p.newRemain--
			p.pos++
		}

		if p.oldRemain <= 0 && p.newRemain <= 0 {
			p.inHunk = false
		}
	}
}

// changeRun handles a run of removed lines and the added run that may follow.
func (p *rangeParser) changeRun() {
	removed := p.countRun('-')
	added := 0
	if p.pos < len(p.lines) && strings.HasPrefix(p.lines[p.pos], "+") {
		added = p.countRun('+')
	}

	if added == 0 {
		p.out.Deleted = append(p.out.Deleted, anchor(p.cursor-1))
		return
	}

	paired := min(removed, added)
	p.out.Modified = append(p.out.Modified, LineRange{StartLine: p.cursor, EndLine: p.cursor + paired - 1})
	if added > paired {
		p.out.Added = append(p.out.Added, LineRange{StartLine: p.cursor + paired, EndLine: p.cursor + added - 1})
	}
	if removed > paired {
		p.out.Deleted = append(p.out.Deleted, anchor(p.cursor+paired-1))
	}
	p.cursor += added
}

// countRun consumes consecutive lines starting with marker, skipping "\"
// markers inside the run, and returns how many marker lines it consumed.
func (p *rangeParser) countRun(marker byte) int {
	n := 0
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if strings.HasPrefix(line, `\`) {
			p.pos++
			continue
		}
		if line == "" || line[0] != marker {
			break
		}
		if marker == '-' && p.oldRemain <= 0 || marker == '+' && p.newRemain <= 0 {
			break
		}
		if marker == '-' {
			p.oldRemain--
		} else {
			p.newRemain--
		}
		n++
		p.pos++
	}
	return n
}

func anchor(line int) int {
	if line < 0 {
		return 0
	}
	return line
}
