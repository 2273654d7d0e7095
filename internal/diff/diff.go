// Package diff computes line diffs between two revisions of a page.
package diff

import (
	"slices"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/starford/moewiki/internal/models"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 5

// Op classifies a side-by-side row.
type Op string

const (
	OpEqual  Op = "equal"
	OpDelete Op = "delete"
	OpInsert Op = "insert"
	OpChange Op = "change"
)

// Line is one numbered line of a revision body. Numbers start at 1.
type Line struct {
	No   int    `json:"no"`
	Text string `json:"text"`
}

// Row pairs a line of the older revision with one of the newer. Either
// side is nil when the row only exists on the other.
type Row struct {
	Op   Op    `json:"op"`
	From *Line `json:"from,omitempty"`
	To   *Line `json:"to,omitempty"`
}

// Hunk is a run of rows around one or more nearby changes.
type Hunk struct {
	FromStart int   `json:"from_start"`
	FromLines int   `json:"from_lines"`
	ToStart   int   `json:"to_start"`
	ToLines   int   `json:"to_lines"`
	Rows      []Row `json:"rows"`
}

// Side describes one of the two compared revisions.
type Side struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is the embeddable result of a diff.
type View struct {
	From      Side   `json:"from"`
	To        Side   `json:"to"`
	Identical bool   `json:"identical"`
	Hunks     []Hunk `json:"hunks"`
	Unified   string `json:"unified"`
}

// Compute diffs the raw bodies of a and b. The more recently updated
// revision is always the "to" side, whatever the argument order.
func Compute(a, b *models.Revision, context int) *View {
	if context < 0 {
		context = DefaultContext
	}
	from, to := order(a, b)

	v := &View{From: side(from), To: side(to), Hunks: []Hunk{}}
	fromLines := splitLines(from.BodyRaw)
	toLines := splitLines(to.BodyRaw)
	if slices.Equal(fromLines, toLines) {
		v.Identical = true
		return v
	}

	m := difflib.NewMatcher(fromLines, toLines)
	for _, group := range m.GetGroupedOpCodes(context) {
		v.Hunks = append(v.Hunks, buildHunk(group, fromLines, toLines))
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withEOL(fromLines),
		B:        withEOL(toLines),
		FromFile: v.From.Label,
		ToFile:   v.To.Label,
		Context:  context,
	})
	if err == nil {
		v.Unified = unified
	}
	return v
}

// order returns (older, newer). Equal timestamps fall back to the head,
// then the higher version, so the assignment never depends on argument
// order.
func order(a, b *models.Revision) (*models.Revision, *models.Revision) {
	switch {
	case a.UpdatedAt.Before(b.UpdatedAt):
		return a, b
	case b.UpdatedAt.Before(a.UpdatedAt):
		return b, a
	case a.IsHead():
		return b, a
	case b.IsHead():
		return a, b
	case a.Version > b.Version:
		return b, a
	default:
		return a, b
	}
}

func side(r *models.Revision) Side {
	label := "revision " + r.ID()
	if r.IsHead() {
		label = "latest revision"
	}
	return Side{ID: r.ID(), Label: label, Title: r.Title, UpdatedAt: r.UpdatedAt}
}

func buildHunk(group []difflib.OpCode, a, b []string) Hunk {
	first, last := group[0], group[len(group)-1]
	h := Hunk{
		FromStart: first.I1 + 1,
		FromLines: last.I2 - first.I1,
		ToStart:   first.J1 + 1,
		ToLines:   last.J2 - first.J1,
	}
	for _, op := range group {
		switch op.Tag {
		case 'e':
			for i, j := op.I1, op.J1; i < op.I2; i, j = i+1, j+1 {
				h.Rows = append(h.Rows, Row{Op: OpEqual, From: line(a, i), To: line(b, j)})
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				h.Rows = append(h.Rows, Row{Op: OpDelete, From: line(a, i)})
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				h.Rows = append(h.Rows, Row{Op: OpInsert, To: line(b, j)})
			}
		case 'r':
			n := max(op.I2-op.I1, op.J2-op.J1)
			for k := 0; k < n; k++ {
				i, j := op.I1+k, op.J1+k
				switch {
				case i < op.I2 && j < op.J2:
					h.Rows = append(h.Rows, Row{Op: OpChange, From: line(a, i), To: line(b, j)})
				case i < op.I2:
					h.Rows = append(h.Rows, Row{Op: OpDelete, From: line(a, i)})
				default:
					h.Rows = append(h.Rows, Row{Op: OpInsert, To: line(b, j)})
				}
			}
		}
	}
	return h
}

func line(lines []string, i int) *Line {
	return &Line{No: i + 1, Text: lines[i]}
}

// splitLines splits like a line reader: \r\n and \n both end a line and a
// trailing newline does not start a new one.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func withEOL(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
