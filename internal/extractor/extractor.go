// Package extractor turns free-form model output into candidate trade
// instructions. Structured JSON fragments take precedence; prose is only
// pattern-matched when no structured instruction is present.
package extractor

import (
	"encoding/json"
	"regexp"

	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/types"
)

// Extractor produces zero or more instructions from decision text. An empty
// result is a valid HOLD decision, not an error.
type Extractor interface {
	Extract(text string) []types.Instruction
}

// jsonFragment finds objects or arrays that mention an "action" key anywhere
// in the text, so JSON embedded inside prose is still picked up
var jsonFragment = regexp.MustCompile(`(?is)\{[^{}]*"action"[^{}]*\}|\[[^\[\]]*"action"[^\[\]]*\]`)

// Default tries structured fragments first and falls back to its
// natural-language patterns
type Default struct {
	patterns []Pattern
}

// New creates an extractor using patterns for the prose fallback, or the
// built-in patterns when none are given
func New(patterns ...Pattern) *Default {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Default{patterns: patterns}
}

func (d *Default) Extract(text string) []types.Instruction {
	logger := log.With().Str("component", "extractor").Logger()

	if structured := Structured(text); len(structured) > 0 {
		logger.Debug().Int("instructions", len(structured)).Msg("extracted structured instructions")
		return structured
	}

	prose := NaturalLanguage(text, d.patterns)
	logger.Debug().Int("instructions", len(prose)).Msg("extracted natural-language instructions")
	return prose
}

// Structured collects every instruction found in JSON fragments of text,
// flattening arrays. Fragments that are not valid JSON are skipped.
func Structured(text string) []types.Instruction {
	var instructions []types.Instruction

	for _, fragment := range jsonFragment.FindAllString(text, -1) {
		parsed, ok := decodeFragment([]byte(fragment))
		if !ok {
			log.Debug().Str("fragment", fragment).Msg("skipping malformed json fragment")
			continue
		}
		instructions = append(instructions, parsed...)
	}

	return instructions
}

// DecodeDocument parses a JSON trade document that is either one instruction
// object or an array of them
func DecodeDocument(data []byte) ([]types.Instruction, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		var single types.Instruction
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, err
		}
		return []types.Instruction{single}, nil
	}

	instructions := make([]types.Instruction, 0, len(elements))
	for _, element := range elements {
		var instruction types.Instruction
		if err := json.Unmarshal(element, &instruction); err != nil {
			return nil, err
		}
		instructions = append(instructions, instruction)
	}
	return instructions, nil
}

// decodeFragment is DecodeDocument for embedded fragments: array elements
// that are not objects are dropped instead of failing the fragment
func decodeFragment(data []byte) ([]types.Instruction, bool) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err == nil {
		var instructions []types.Instruction
		for _, element := range elements {
			var instruction types.Instruction
			if err := json.Unmarshal(element, &instruction); err != nil {
				continue
			}
			instructions = append(instructions, instruction)
		}
		return instructions, true
	}

	var instruction types.Instruction
	if err := json.Unmarshal(data, &instruction); err != nil {
		return nil, false
	}
	return []types.Instruction{instruction}, true
}
