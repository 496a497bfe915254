package transcript

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"ai-interview-capture-service/internal/models"
)

const (
	// Title is the fixed document header.
	Title = "Interview Transcript"
	// ContentType of the rendered document.
	ContentType = "application/pdf"

	pageHeight = 297.0
	marginX    = 20.0
	titleY     = 20.0
	firstY     = 40.0
	topY       = 20.0
	bottomY    = pageHeight - 20
	lineHeight = 7.0
	entryGap   = 10.0
	textWidth  = 170.0
	titleSize  = 20.0
	bodySize   = 12.0
)

// documentDate is stamped into every document so output does not depend on the clock.
var documentDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Line is one positioned line of the document.
type Line struct {
	Y    float64
	Text string
	// Label marks the role heading of an entry.
	Label bool
	Role  models.Role
}

// Page is the lines placed on one page, top to bottom.
type Page []Line

// WrapFunc splits text into lines that fit the text column.
type WrapFunc func(text string) []string

// Layout places entries on pages. An entry's role label never ends a page:
// it always shares its page with the first line of the entry's text.
// Continuation lines flow onto following pages. Layout always returns at
// least one page.
func Layout(entries []models.TranscriptEntry, wrap WrapFunc) []Page {
	pages := []Page{nil}
	y := firstY
	breakPage := func() {
		pages = append(pages, nil)
		y = topY
	}
	place := func(l Line) {
		l.Y = y
		pages[len(pages)-1] = append(pages[len(pages)-1], l)
		y += lineHeight
	}

	for _, e := range entries {
		lines := wrap(e.Text)
		if len(lines) == 0 {
			lines = []string{""}
		}
		if y+lineHeight > bottomY {
			breakPage()
		}
		place(Line{Text: e.Role.Label() + ":", Label: true, Role: e.Role})
		for i, text := range lines {
			if i > 0 && y > bottomY {
				breakPage()
			}
			place(Line{Text: text, Role: e.Role})
		}
		y += entryGap
	}
	return pages
}

// wrapColumns returns a WrapFunc breaking at word boundaries after n runes.
func wrapColumns(n int) WrapFunc {
	return func(text string) []string {
		var lines []string
		var cur []rune
		for _, field := range strings.Fields(text) {
			word := []rune(field)
			for len(word) > n {
				if len(cur) > 0 {
					lines = append(lines, string(cur))
					cur = cur[:0]
				}
				lines = append(lines, string(word[:n]))
				word = word[n:]
			}
			if len(cur) > 0 && len(cur)+1+len(word) > n {
				lines = append(lines, string(cur))
				cur = cur[:0]
			}
			if len(cur) > 0 {
				cur = append(cur, ' ')
			}
			cur = append(cur, word...)
		}
		if len(cur) > 0 {
			lines = append(lines, string(cur))
		}
		return lines
	}
}

// toCodePage maps text onto the cp1252 code page of the core fonts. Each
// rune of the result is a code page byte, which is what fpdf's width tables
// are indexed by. Runes outside the code page become '.'.
func toCodePage(translate func(string) string, text string) string {
	enc := translate(text)
	rs := make([]rune, len(enc))
	for i := 0; i < len(enc); i++ {
		rs[i] = rune(enc[i])
	}
	return string(rs)
}

// codePageBytes turns a toCodePage line into the bytes written to the page.
func codePageBytes(line string) string {
	b := make([]byte, 0, len(line))
	for _, r := range line {
		b = append(b, byte(r))
	}
	return string(b)
}

// Render produces the transcript document. The same entries always yield
// the same bytes. Text outside cp1252 is replaced, never rejected.
func Render(entries []models.TranscriptEntry) (blob models.Blob, err error) {
	defer func() {
		if r := recover(); r != nil {
			blob, err = models.Blob{}, fmt.Errorf("render transcript: %v", r)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(Title, false)
	pdf.SetAutoPageBreak(false, 0)
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "", bodySize)
	wrap := func(text string) []string {
		return pdf.SplitText(toCodePage(translate, text), textWidth)
	}
	pages := Layout(entries, wrap)

	for i, page := range pages {
		pdf.AddPage()
		if i == 0 {
			pdf.SetFont("Helvetica", "", titleSize)
			pdf.SetTextColor(0, 0, 0)
			pdf.Text(marginX, titleY, Title)
		}
		for _, line := range page {
			if line.Label {
				pdf.SetFont("Helvetica", "B", bodySize)
				if line.Role == models.RoleAI {
					pdf.SetTextColor(0, 0, 0)
				} else {
					pdf.SetTextColor(0, 102, 204)
				}
				pdf.Text(marginX, line.Y, codePageBytes(line.Text))
				continue
			}
			pdf.SetFont("Helvetica", "", bodySize)
			pdf.SetTextColor(0, 0, 0)
			pdf.Text(marginX, line.Y, codePageBytes(line.Text))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return models.Blob{}, fmt.Errorf("render transcript: %w", err)
	}
	return models.Blob{
		Name:        "transcript.pdf",
		ContentType: ContentType,
		Data:        buf.Bytes(),
	}, nil
}
