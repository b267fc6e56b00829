package music

import (
	"log/slog"

	"github.com/whitneyland/mcpplay-core/logger"
)

// Player is the default audio collaborator. It validates and summarizes
// submitted sequences; it does not synthesize audio, so the standalone
// binary stays functional without an audio backend.
type Player struct {
	log *slog.Logger
}

// NewPlayer creates the default player.
func NewPlayer() *Player {
	return &Player{log: logger.WithComponent("music")}
}

// Play parses the raw sequence payload and returns a one-line summary of
// what was queued.
func (p *Player) Play(score []byte) (string, error) {
	seq, err := Parse(score)
	if err != nil {
		return "", err
	}
	p.log.Info("sequence queued",
		"notes", seq.NoteCount(),
		"tracks", len(seq.Tracks),
		"tempo", seq.Tempo,
		"beats", seq.Beats())
	return "Queued " + seq.Summary(), nil
}
