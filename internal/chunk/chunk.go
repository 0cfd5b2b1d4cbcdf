// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chunk splits long text into pieces small enough for an embedding
// model's context. Sizes are counted in runes; a token is roughly four.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Strategy selects how text is cut.
type Strategy string

const (
	// FixedSize cuts every Size runes, each chunk repeating the last
	// Overlap runes of the previous one.
	FixedSize Strategy = "fixed_size"
	// Sentence cuts after '.', '!' or '?' and packs sentences up to Size.
	Sentence Strategy = "sentence"
	// Paragraph cuts at blank lines and packs paragraphs up to Size.
	Paragraph Strategy = "paragraph"
)

// ParseStrategy accepts the strategy names in any case, with '-' or '_'.
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch Strategy(norm) {
	case FixedSize, Sentence, Paragraph:
		return Strategy(norm), nil
	case "":
		return FixedSize, nil
	}
	return "", fmt.Errorf("unknown chunking strategy %q (want fixed_size, sentence or paragraph)", s)
}

// Config controls Split. The zero value is disabled.
type Config struct {
	Enabled  bool
	Strategy Strategy
	Size     int
	Overlap  int
}

// Default is the configuration used when none is given: disabled, 500 runes
// with a 50 rune overlap.
func Default() Config {
	return Config{Strategy: FixedSize, Size: 500, Overlap: 50}
}

// FixedSizeConfig returns an enabled fixed-size configuration.
func FixedSizeConfig(size, overlap int) Config {
	return Config{Enabled: true, Strategy: FixedSize, Size: size, Overlap: overlap}
}

// SentenceConfig returns an enabled sentence configuration.
func SentenceConfig(maxSize int) Config {
	return Config{Enabled: true, Strategy: Sentence, Size: maxSize}
}

// ParagraphConfig returns an enabled paragraph configuration.
func ParagraphConfig(maxSize int) Config {
	return Config{Enabled: true, Strategy: Paragraph, Size: maxSize}
}

// Validate reports a configuration Split cannot honour. A disabled config
// is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Size, c.Overlap)
	}
	return nil
}

// =============================================================================
// SPLITTING
// =============================================================================

var (
	sentenceEnd  = regexp.MustCompile(`[.!?]\s+`)
	paragraphGap = regexp.MustCompile(`\n\n+`)
)

// Split cuts text according to cfg. Empty text yields no chunks and a
// disabled config yields text unchanged as the only chunk. cfg is assumed
// valid.
func Split(text string, cfg Config) []string {
	if text == "" {
		return nil
	}
	if !cfg.Enabled {
		return []string{text}
	}

	strategy, _ := ParseStrategy(string(cfg.Strategy))
	switch strategy {
	case Sentence:
		return pack(sentences(text), cfg.Size)
	case Paragraph:
		return pack(paragraphGap.Split(text, -1), cfg.Size)
	default:
		return fixed(text, cfg.Size, cfg.Overlap)
	}
}

func fixed(text string, size, overlap int) []string {
	runes := []rune(text)
	step := max(size-overlap, 1)

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// sentences splits after each terminator, dropping the whitespace that
// follows it.
func sentences(text string) []string {
	var parts []string
	start := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		parts = append(parts, text[start:m[0]+1])
		start = m[1]
	}
	return append(parts, text[start:])
}

// pack joins consecutive parts with a space while they fit in size. A part
// longer than size on its own is cut into size-rune pieces.
func pack(parts []string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			curLen = 0
		}
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n := utf8.RuneCountInString(part)
		if curLen+n+1 > size {
			flush()
			if n > size {
				chunks = append(chunks, fixed(part, size, 0)...)
				continue
			}
		}
		if curLen > 0 {
			current.WriteByte(' ')
			curLen++
		}
		current.WriteString(part)
		curLen += n
	}
	flush()
	return chunks
}
