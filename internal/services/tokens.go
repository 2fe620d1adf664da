package services

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// TokenEstimator gives an offline approximation of how many tokens a text
// costs. Gemini uses its own tokenizer, so this is only a ballpark figure
// for the upload confirmation.
type TokenEstimator struct {
	once  sync.Once
	codec tokenizer.Codec
}

func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// Estimate falls back to a character-weight heuristic when the codec is
// unavailable.
func (e *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	e.once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("token codec unavailable, using heuristic estimate")
			return
		}
		e.codec = codec
	})

	if e.codec != nil {
		ids, _, err := e.codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return heuristicTokens(text)
}

// heuristicTokens counts about four ASCII characters per token and one
// token per non-ASCII character.
func heuristicTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
