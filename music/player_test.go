package music

import (
	"strings"
	"testing"
)

func TestPlayerPlay(t *testing.T) {
	p := NewPlayer()

	summary, err := p.Play([]byte(`{"tempo":120,"tracks":[{"notes":[{"pitch":"C4","start":0,"duration":1}]}]}`))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	want := "Queued 1 note(s) on 1 track(s) at 120 bpm"
	if summary != want {
		t.Errorf("summary = %q, want %q", summary, want)
	}
}

func TestPlayerRejectsInvalidSequence(t *testing.T) {
	p := NewPlayer()

	if _, err := p.Play([]byte(`{"tempo":0}`)); err == nil {
		t.Error("Play should reject a zero tempo")
	}
	if _, err := p.Play([]byte(`not json`)); err == nil {
		t.Error("Play should reject malformed payloads")
	}
}

func TestPlayerIncludesTitle(t *testing.T) {
	p := NewPlayer()

	summary, err := p.Play([]byte(`{"title":"Nocturne","tempo":60}`))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !strings.Contains(summary, `"Nocturne"`) {
		t.Errorf("summary = %q, want the title included", summary)
	}
}
