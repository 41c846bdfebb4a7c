package document

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Splitter cuts text into chunks of at most ChunkSize tokens. A chunk is
// shortened to end at its last sentence boundary when that boundary lies
// beyond MinChunkChars characters. Chunks no longer than MinEmbedLength
// characters are discarded, and at most MaxChunks chunks are produced per
// text.
type Splitter struct {
	ChunkSize      int
	Overlap        int
	MinChunkChars  int
	MinEmbedLength int
	MaxChunks      int
}

// DefaultSplitter returns the default chunking parameters.
func DefaultSplitter() Splitter {
	return Splitter{
		ChunkSize:      800,
		Overlap:        0,
		MinChunkChars:  350,
		MinEmbedLength: 5,
		MaxChunks:      10000,
	}
}

// Chunk is a split piece of a section.
type Chunk struct {
	Text string
	Page int
}

// A token is a word or a single symbol together with the whitespace that
// precedes it, so concatenating tokens reproduces the text.
var tokenPattern = regexp.MustCompile(`\s*(?:[\p{L}\p{N}_]+|[^\s\p{L}\p{N}_])`)

// Tokens counts the tokens in text as the splitter sees them.
func Tokens(text string) int {
	return len(tokenPattern.FindAllStringIndex(text, -1))
}

// Split cuts one text into chunk texts.
func (s Splitter) Split(text string) []string {
	s = s.withDefaults()
	locs := tokenPattern.FindAllStringIndex(text, -1)

	var out []string
	i := 0
	for i < len(locs) && len(out) < s.MaxChunks {
		j := min(i+s.ChunkSize, len(locs))
		start, end := locs[i][0], locs[j-1][1]
		window := text[start:end]

		if strings.TrimSpace(window) == "" {
			i = j
			continue
		}

		cut := j
		if p := strings.LastIndexAny(window, ".?!\n"); p >= 0 && utf8.RuneCountInString(window[:p]) > s.MinChunkChars {
			limit := start + p + 1
			k := j
			for k > i && locs[k-1][1] > limit {
				k--
			}
			if k > i {
				cut = k
			}
		}

		chunk := strings.TrimSpace(text[start:locs[cut-1][1]])
		if utf8.RuneCountInString(chunk) > s.MinEmbedLength {
			out = append(out, chunk)
		}

		if cut >= len(locs) {
			break
		}
		next := cut
		if s.Overlap > 0 && cut-s.Overlap > i {
			next = cut - s.Overlap
		}
		i = next
	}
	return out
}

// SplitSections splits every section, carrying its page onto each chunk.
// MaxChunks bounds the total across sections.
func (s Splitter) SplitSections(sections []Section) []Chunk {
	s = s.withDefaults()
	var out []Chunk
	for _, sec := range sections {
		remaining := s.MaxChunks - len(out)
		if remaining <= 0 {
			break
		}
		sub := s
		sub.MaxChunks = remaining
		for _, text := range sub.Split(sec.Text) {
			out = append(out, Chunk{Text: text, Page: sec.Page})
		}
	}
	return out
}

func (s Splitter) withDefaults() Splitter {
	d := DefaultSplitter()
	if s.ChunkSize <= 0 {
		s.ChunkSize = d.ChunkSize
	}
	if s.Overlap < 0 || s.Overlap >= s.ChunkSize {
		s.Overlap = 0
	}
	if s.MinChunkChars < 0 {
		s.MinChunkChars = 0
	}
	if s.MinEmbedLength < 0 {
		s.MinEmbedLength = 0
	}
	if s.MaxChunks <= 0 {
		s.MaxChunks = d.MaxChunks
	}
	return s
}
