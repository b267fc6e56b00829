package music

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const engraveInput = `{
	"title": "Scale",
	"tempo": 100,
	"tracks": [{"instrument": "piano", "notes": [
		{"pitch": "C4", "start": 0, "duration": 1},
		{"pitch": "D4", "start": 1, "duration": 1},
		{"pitch": "E4", "start": 2, "duration": 1}
	]}]
}`

func TestEngraveWritesSVG(t *testing.T) {
	dir := t.TempDir()
	e := NewEngraver(dir)

	eng, err := e.Engrave([]byte(engraveInput))
	if err != nil {
		t.Fatalf("Engrave: %v", err)
	}

	if !strings.HasPrefix(eng.FileName, "score-") || !strings.HasSuffix(eng.FileName, ".svg") {
		t.Errorf("FileName = %q, want score-*.svg", eng.FileName)
	}
	if eng.MimeType != "image/svg+xml" {
		t.Errorf("MimeType = %q", eng.MimeType)
	}
	if !strings.Contains(eng.Summary, "Engraved") || !strings.Contains(eng.Summary, "3 note(s)") {
		t.Errorf("Summary = %q", eng.Summary)
	}

	data, err := os.ReadFile(filepath.Join(dir, eng.FileName))
	if err != nil {
		t.Fatalf("engraving not written: %v", err)
	}
	svg := string(data)
	if !strings.HasPrefix(svg, "<svg ") || !strings.Contains(svg, "</svg>") {
		t.Errorf("output is not an SVG document: %.60q", svg)
	}
	// One rectangle per note plus the background.
	if got := strings.Count(svg, "<rect"); got != 4 {
		t.Errorf("rect count = %d, want 4", got)
	}
	if !strings.Contains(svg, ">Scale</text>") {
		t.Error("title missing from engraving")
	}
}

func TestEngraveCreatesImagesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "images")
	e := NewEngraver(dir)

	eng, err := e.Engrave([]byte(engraveInput))
	if err != nil {
		t.Fatalf("Engrave: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, eng.FileName)); err != nil {
		t.Errorf("engraving not written under new dir: %v", err)
	}
}

func TestEngraveFreshFileNames(t *testing.T) {
	e := NewEngraver(t.TempDir())

	first, err := e.Engrave([]byte(engraveInput))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Engrave([]byte(engraveInput))
	if err != nil {
		t.Fatal(err)
	}
	if first.FileName == second.FileName {
		t.Errorf("both engravings landed on %q", first.FileName)
	}
}

func TestEngraveRejectsInvalidSequence(t *testing.T) {
	dir := t.TempDir()
	e := NewEngraver(dir)

	if _, err := e.Engrave([]byte(`{"tempo":-1}`)); err == nil {
		t.Fatal("Engrave should reject an invalid sequence")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected sequence still wrote %d file(s)", len(entries))
	}
}

func TestRenderSVGEscapesTitle(t *testing.T) {
	seq := &Sequence{Title: `<b>&"x"`, Tempo: 100}
	svg := string(renderSVG(seq))

	if strings.Contains(svg, "<b>") {
		t.Error("title markup leaked into the SVG")
	}
	if !strings.Contains(svg, "&lt;b&gt;") {
		t.Errorf("title not escaped: %s", svg)
	}
}

func TestRenderSVGEmptySequence(t *testing.T) {
	svg := string(renderSVG(&Sequence{Tempo: 100}))

	if !strings.HasPrefix(svg, "<svg ") {
		t.Errorf("output is not an SVG document: %.60q", svg)
	}
	// Background only, no note rectangles.
	if got := strings.Count(svg, "<rect"); got != 1 {
		t.Errorf("rect count = %d, want 1", got)
	}
}
