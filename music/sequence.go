// Package music implements the default collaborators behind the mcp tool
// surface: sequence parsing, validation, and summaries for the play tool,
// and a placeholder piano-roll engraver for the engrave tool. Audio
// synthesis and real notation rendering (MEI) belong to the host app and
// reach the server through the mcp collaborator interfaces instead.
package music

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Sequence is the score payload agents submit to the play tool.
type Sequence struct {
	Title  string  `json:"title,omitempty"`
	Tempo  float64 `json:"tempo"`
	Tracks []Track `json:"tracks,omitempty"`
}

// Track groups the notes played by one instrument.
type Track struct {
	Instrument string `json:"instrument,omitempty"`
	Notes      []Note `json:"notes,omitempty"`
}

// Note schedules a single pitch. Start and Duration are in beats.
type Note struct {
	Pitch    string  `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity,omitempty"`
}

// Parse decodes and validates a raw sequence payload.
func Parse(data []byte) (*Sequence, error) {
	var seq Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("invalid sequence: %w", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

// Validate checks that the sequence is playable: a positive tempo and
// well-formed notes on every track.
func (s *Sequence) Validate() error {
	if s.Tempo <= 0 {
		return fmt.Errorf("tempo must be positive, got %g", s.Tempo)
	}
	for ti, track := range s.Tracks {
		for ni, note := range track.Notes {
			if err := note.validate(); err != nil {
				return fmt.Errorf("track %d note %d: %w", ti, ni, err)
			}
		}
	}
	return nil
}

func (n Note) validate() error {
	if _, err := ParsePitch(n.Pitch); err != nil {
		return err
	}
	if n.Start < 0 {
		return fmt.Errorf("start %g is negative", n.Start)
	}
	if n.Duration <= 0 {
		return fmt.Errorf("duration %g is not positive", n.Duration)
	}
	if n.Velocity < 0 || n.Velocity > 127 {
		return fmt.Errorf("velocity %d outside 0-127", n.Velocity)
	}
	return nil
}

// NoteCount returns the number of notes across all tracks.
func (s *Sequence) NoteCount() int {
	count := 0
	for _, track := range s.Tracks {
		count += len(track.Notes)
	}
	return count
}

// Beats returns the sequence length in beats: the latest note end time.
func (s *Sequence) Beats() float64 {
	end := 0.0
	for _, track := range s.Tracks {
		for _, note := range track.Notes {
			if t := note.Start + note.Duration; t > end {
				end = t
			}
		}
	}
	return end
}

// Summary describes the sequence in one line for tool responses,
// e.g. `"Etude": 12 note(s) on 2 track(s) at 96 bpm`.
func (s *Sequence) Summary() string {
	desc := fmt.Sprintf("%d note(s) on %d track(s) at %g bpm",
		s.NoteCount(), len(s.Tracks), s.Tempo)
	if s.Title != "" {
		return fmt.Sprintf("%q: %s", s.Title, desc)
	}
	return desc
}

// noteOffsets maps natural note letters to semitone offsets within an octave.
var noteOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// ParsePitch converts scientific pitch notation to a MIDI note number.
// Accepted forms are a note letter, an optional single accidental (# or b),
// and an octave: "C4" → 60, "F#3" → 54, "Bb-1" → 10.
func ParsePitch(pitch string) (int, error) {
	if len(pitch) < 2 {
		return 0, fmt.Errorf("malformed pitch %q", pitch)
	}
	letter := pitch[0]
	if letter >= 'a' && letter <= 'g' {
		letter -= 'a' - 'A'
	}
	semitone, ok := noteOffsets[letter]
	if !ok {
		return 0, fmt.Errorf("malformed pitch %q", pitch)
	}

	rest := pitch[1:]
	switch rest[0] {
	case '#':
		semitone++
		rest = rest[1:]
	case 'b':
		semitone--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("malformed pitch %q", pitch)
	}
	// MIDI note 0 is C-1, so C4 lands on 60.
	number := (octave+1)*12 + semitone
	if number < 0 || number > 127 {
		return 0, fmt.Errorf("pitch %q outside the MIDI range", pitch)
	}
	return number, nil
}
