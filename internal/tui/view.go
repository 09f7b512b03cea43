package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/boltview/internal/app"
	"github.com/roach88/boltview/internal/decode"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	dbPaneWidth   = 24
	valueWidth    = 60
)

// render draws the whole screen for s.
func render(s app.State, km KeyMap, st Styles, width, height int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	rows := height - 4

	var body string
	switch {
	case s.Env == nil:
		body = st.Dim.Render("no store open")
	case s.View() == app.ViewHelp:
		body = renderHelp(km, st)
	case s.View() == app.ViewPreview:
		body = renderPreview(s, st)
	case s.View() == app.ViewQuery && s.Query != nil:
		body = renderQuery(s, st, rows)
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			st.Pane.Width(dbPaneWidth).Render(renderDatabases(s, st, rows)),
			st.Pane.Width(max(width-dbPaneWidth-6, 20)).Render(renderEntries(s, st, rows)),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(s, st),
		body,
		renderFooter(s, km, st),
	)
}

func renderHeader(s app.State, st Styles) string {
	parts := []string{st.Title.Render("boltview")}
	if s.Env != nil {
		path := s.Env.Path
		if s.Env.ReadOnly {
			path += " [read-only]"
		}
		parts = append(parts, st.Header.Render(path))
	}
	parts = append(parts, st.Header.Render(s.Phase.String()))
	if s.Pending != "" {
		parts = append(parts, st.Pending.Render(fmt.Sprintf("pending: %d undo, %d redo", s.Undo, s.Redo)))
	}
	if n := len(s.Jobs); n > 0 {
		parts = append(parts, st.Dim.Render(fmt.Sprintf("%d jobs", n)))
	}
	return strings.Join(parts, "  ")
}

func renderDatabases(s app.State, st Styles, rows int) string {
	if len(s.Databases) == 0 {
		return st.Dim.Render("(no databases)")
	}
	lines := make([]string, 0, len(s.Databases))
	for _, i := range window(len(s.Databases), s.Selected, rows) {
		if i == s.Selected {
			lines = append(lines, st.Selected.Render("> "+s.Databases[i]))
			continue
		}
		lines = append(lines, st.Normal.Render("  "+s.Databases[i]))
	}
	return strings.Join(lines, "\n")
}

func renderEntries(s app.State, st Styles, rows int) string {
	db, ok := s.CurrentDB()
	if !ok {
		return st.Dim.Render("select a database")
	}
	if len(s.Entries) == 0 {
		return st.Dim.Render("(empty)")
	}
	lines := make([]string, 0, rows)
	for _, i := range window(len(s.Entries), s.Cursor, rows) {
		rec := s.Entries[i]
		mark := "  "
		if s.Bookmarked(app.Location{DB: db, Key: rec.Key}) {
			mark = st.Bookmark.Render("* ")
		}
		line := fmt.Sprintf("%s = %s", display(rec.Key, 32), display(rec.Value, valueWidth))
		if i == s.Cursor {
			lines = append(lines, mark+st.Selected.Render(line))
			continue
		}
		lines = append(lines, mark+st.Normal.Render(line))
	}
	if len(s.Entries) >= s.EntryLimit && s.EntryLimit > 0 {
		lines = append(lines, st.Dim.Render(fmt.Sprintf("first %d entries", s.EntryLimit)))
	}
	return strings.Join(lines, "\n")
}

func renderQuery(s app.State, st Styles, rows int) string {
	q := s.Query
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n", st.Title.Render("query"), q.Text, st.Dim.Render("in "+q.DB))
	switch {
	case q.Running:
		fmt.Fprintln(&b, st.Dim.Render(fmt.Sprintf("scanning... %d entries", q.Scanned)))
	case len(q.Results) == 0:
		fmt.Fprintln(&b, st.Dim.Render("no matches"))
	}
	for i, rec := range q.Results {
		if i >= rows {
			fmt.Fprintln(&b, st.Dim.Render(fmt.Sprintf("... %d more", len(q.Results)-i)))
			break
		}
		fmt.Fprintf(&b, "%s = %s\n", display(rec.Key, 32), display(rec.Value, valueWidth))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPreview(s app.State, st Styles) string {
	var b strings.Builder
	db, _ := s.CurrentDB()
	if rec, ok := s.Current(); ok {
		fmt.Fprintf(&b, "%s %s\n\n", st.Title.Render(db+" /"), display(rec.Key, 80))
		b.WriteString(pretty(rec.Value))
		b.WriteString("\n")
	} else {
		fmt.Fprintln(&b, st.Dim.Render("no entry selected"))
	}
	if ds := s.DBStats; ds != nil {
		fmt.Fprintf(&b, "\n%s entries %d, depth %d, %d pages, %d bytes\n",
			st.Header.Render(ds.Name+":"), ds.Entries, ds.Depth, ds.Pages(), ds.Bytes())
	}
	if es := s.EnvStats; es != nil {
		fmt.Fprintf(&b, "%s %d databases, %d bytes, %d readers, txid %d\n",
			st.Header.Render("store:"), es.Databases, es.DataSize, es.OpenReaders, es.LastTxID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHelp(km KeyMap, st Styles) string {
	lines := []string{st.Title.Render("keys")}
	for _, b := range km.Help() {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("  %-10s %s", h.Key, st.Dim.Render(h.Desc)))
	}
	return strings.Join(lines, "\n")
}

func renderFooter(s app.State, km KeyMap, st Styles) string {
	switch s.Input {
	case app.InputQuery:
		return st.Input.Render("query: " + s.InputText + "_")
	case app.InputPut:
		return st.Input.Render("put key=value: " + s.InputText + "_")
	}
	if n := s.Notice; n != nil {
		text := n.Text
		if n.Code != "" {
			text = fmt.Sprintf("[%s] %s", n.Code, text)
		}
		return st.notice(n.Level).Render(text)
	}
	if b, ok := km.Binding(ActionHelp); ok {
		return st.Dim.Render(b.Help().Key + " for help")
	}
	return ""
}

// window returns the indexes of at most rows items around cursor.
func window(n, cursor, rows int) []int {
	if rows <= 0 {
		rows = 1
	}
	start := 0
	if cursor >= rows {
		start = cursor - rows + 1
	}
	end := min(start+rows, n)
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

// display renders b on one line, truncated to width runes.
func display(b []byte, width int) string {
	var s string
	if utf8.Valid(b) {
		s = strings.ReplaceAll(string(b), "\n", `\n`)
	} else {
		s = fmt.Sprintf("%q", b)
	}
	if utf8.RuneCountInString(s) > width {
		r := []rune(s)
		s = string(r[:width-1]) + "…"
	}
	return s
}

// pretty renders a value for the preview: indented JSON when it decodes,
// otherwise the raw text or a quoted byte string.
func pretty(value []byte) string {
	if v, err := (decode.Auto{}).Decode(value); err == nil {
		if out, err := json.MarshalIndent(v, "", "  "); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(value) {
		return string(value)
	}
	return fmt.Sprintf("%q", value)
}
