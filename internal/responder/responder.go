// Package responder produces the assistant's reply for the stub backend.
package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"vita-chat/internal/config"
	"vita-chat/internal/model"
)

// Stream yields reply text in pieces. Recv returns io.EOF after the last one.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Request is one question with the conversation so far and the medical
// entries retrieved for it.
type Request struct {
	Question string
	History  []model.Message
	Context  []model.MedicalEntry
}

type Responder interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// New builds the responder named by cfg.Provider.
func New(cfg config.ResponderConfig) (Responder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "echo":
		return NewEcho(cfg.ChunkDelay), nil
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}

// Collect drains s into one string.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var sb strings.Builder
	for {
		piece, err := s.Recv()
		if err != nil {
			if isEOF(err) {
				return sb.String(), nil
			}
			return sb.String(), err
		}
		sb.WriteString(piece)
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
