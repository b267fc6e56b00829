package music

import (
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/whitneyland/mcpplay-core/logger"
	"github.com/whitneyland/mcpplay-core/mcp"
)

// Piano roll geometry.
const (
	pixelsPerBeat = 40.0
	noteHeight    = 8
	rollMargin    = 24
	minRollBeats  = 4.0
)

// trackPalette cycles when a sequence has more tracks than colors.
var trackPalette = []string{
	"#4e79a7", "#f28e2b", "#59a14f", "#e15759", "#b07aa1", "#76b7b2",
}

// Engraver is the default notation collaborator: a placeholder piano-roll
// renderer that writes SVG files into the served images directory. The real
// MEI notation pipeline lives in the host app.
type Engraver struct {
	dir string
	log *slog.Logger
}

// NewEngraver creates an engraver that writes into dir.
func NewEngraver(dir string) *Engraver {
	return &Engraver{dir: dir, log: logger.WithComponent("music")}
}

// Engrave renders the sequence as a piano-roll SVG under a fresh file name
// and describes the result.
func (e *Engraver) Engrave(score []byte) (*mcp.Engraving, error) {
	seq, err := Parse(score)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	name := "score-" + uuid.NewString() + ".svg"
	if err := os.WriteFile(filepath.Join(e.dir, name), renderSVG(seq), 0644); err != nil {
		return nil, fmt.Errorf("failed to write engraving: %w", err)
	}
	e.log.Info("engraving written", "file", name, "notes", seq.NoteCount())

	return &mcp.Engraving{
		FileName: name,
		MimeType: "image/svg+xml",
		Summary:  "Engraved " + seq.Summary(),
	}, nil
}

// renderSVG draws one rectangle per note: time runs left to right, pitch
// bottom to top, one color per track.
func renderSVG(seq *Sequence) []byte {
	low, high := pitchBounds(seq)
	beats := seq.Beats()
	if beats < minRollBeats {
		beats = minRollBeats
	}
	width := rollMargin*2 + int(beats*pixelsPerBeat)
	height := rollMargin*2 + (high-low+1)*noteHeight

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&b, `  <rect width="%d" height="%d" fill="#fffdf5"/>`+"\n", width, height)
	if seq.Title != "" {
		fmt.Fprintf(&b, `  <text x="%d" y="16" font-family="sans-serif" font-size="12" fill="#333">%s</text>`+"\n",
			rollMargin, html.EscapeString(seq.Title))
	}
	for beat := range int(beats) + 1 {
		x := rollMargin + float64(beat)*pixelsPerBeat
		fmt.Fprintf(&b, `  <line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#e0dcd0"/>`+"\n",
			x, rollMargin, x, height-rollMargin)
	}
	for ti, track := range seq.Tracks {
		color := trackPalette[ti%len(trackPalette)]
		for _, note := range track.Notes {
			midi, err := ParsePitch(note.Pitch)
			if err != nil {
				continue
			}
			x := rollMargin + note.Start*pixelsPerBeat
			y := rollMargin + (high-midi)*noteHeight
			w := note.Duration * pixelsPerBeat
			fmt.Fprintf(&b, `  <rect x="%.1f" y="%d" width="%.1f" height="%d" rx="1" fill="%s"/>`+"\n",
				x, y, w, noteHeight-1, color)
		}
	}
	b.WriteString("</svg>\n")
	return []byte(b.String())
}

// pitchBounds returns the inclusive MIDI range covered by the sequence, or
// an octave around middle C when there are no notes to frame.
func pitchBounds(seq *Sequence) (low, high int) {
	low, high = 127, 0
	found := false
	for _, track := range seq.Tracks {
		for _, note := range track.Notes {
			midi, err := ParsePitch(note.Pitch)
			if err != nil {
				continue
			}
			found = true
			if midi < low {
				low = midi
			}
			if midi > high {
				high = midi
			}
		}
	}
	if !found {
		return 60, 72
	}
	return low, high
}
