// Package timing normalizes per-chunk timing data into document-level
// timing, and estimates sentence timing for providers that return none.
//
// When stitched audio inserts silence between chunks, chunk N's timestamps
// must shift by the cumulative duration of chunks 0..N-1 plus one silence
// gap per join; character offsets shift by the chunk's position in the
// original text. Getting either shift wrong makes the reading highlight
// drift against the audio, so the merge math here mirrors the stitcher's
// layout exactly.
package timing

import (
	"unicode"

	"github.com/voxweave/voxweave/internal/chunk"
)

// WordTiming aligns one word with the final audio and the original text.
// Times are half-open [StartMS, EndMS) in milliseconds; character offsets
// are half-open rune positions.
type WordTiming struct {
	Word      string `json:"word"`
	StartMS   int64  `json:"start_ms"`
	EndMS     int64  `json:"end_ms"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// SentenceTiming aligns one sentence with the final audio, used when no
// word-level data is available.
type SentenceTiming struct {
	Sentence  string `json:"sentence"`
	StartMS   int64  `json:"start_ms"`
	EndMS     int64  `json:"end_ms"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// Timing types for [Data.Type].
const (
	TypeWord     = "word"
	TypeSentence = "sentence"
)

// Data is the document-level timing record. Type selects which list is
// populated.
type Data struct {
	Type      string           `json:"timing_type"`
	Words     []WordTiming     `json:"words,omitempty"`
	Sentences []SentenceTiming `json:"sentences,omitempty"`
}

// Normalizer merges and estimates timing data. It is stateless and safe
// for concurrent use.
type Normalizer struct{}

// NewNormalizer returns a ready Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// MergeWordTimings merges per-chunk word timings into a single
// document-level list. chunkTimings and durationsMS are parallel to chunks;
// silenceBetweenMS is the gap the stitcher inserts at each join.
//
// Chunks with empty timing lists contribute no entries but still advance
// the cumulative clock by their duration.
func (n *Normalizer) MergeWordTimings(chunks []chunk.TextChunk, chunkTimings [][]WordTiming, durationsMS []int64, silenceBetweenMS int64) []WordTiming {
	var merged []WordTiming
	var cumulative int64

	for i, c := range chunks {
		for _, wt := range chunkTimings[i] {
			merged = append(merged, WordTiming{
				Word:      wt.Word,
				StartMS:   wt.StartMS + cumulative,
				EndMS:     wt.EndMS + cumulative,
				StartChar: wt.StartChar + c.StartChar,
				EndChar:   wt.EndChar + c.StartChar,
			})
		}
		cumulative += durationsMS[i]
		if i < len(chunks)-1 {
			cumulative += silenceBetweenMS
		}
	}
	return merged
}

// MergeSentenceTimings is the sentence-level counterpart of
// [Normalizer.MergeWordTimings]; the axis arithmetic is identical.
func (n *Normalizer) MergeSentenceTimings(chunks []chunk.TextChunk, chunkTimings [][]SentenceTiming, durationsMS []int64, silenceBetweenMS int64) []SentenceTiming {
	var merged []SentenceTiming
	var cumulative int64

	for i, c := range chunks {
		for _, st := range chunkTimings[i] {
			merged = append(merged, SentenceTiming{
				Sentence:  st.Sentence,
				StartMS:   st.StartMS + cumulative,
				EndMS:     st.EndMS + cumulative,
				StartChar: st.StartChar + c.StartChar,
				EndChar:   st.EndChar + c.StartChar,
			})
		}
		cumulative += durationsMS[i]
		if i < len(chunks)-1 {
			cumulative += silenceBetweenMS
		}
	}
	return merged
}

// EstimateSentenceTimings distributes totalDurationMS across the sentences
// of text proportionally to their rune length. Sentences are contiguous and
// the last one is forced to end exactly at totalDurationMS so rounding
// never accumulates drift.
func (n *Normalizer) EstimateSentenceTimings(text string, totalDurationMS int64) []SentenceTiming {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	totalChars := 0
	for _, s := range sentences {
		totalChars += len([]rune(s.Text))
	}
	if totalChars == 0 {
		return nil
	}

	result := make([]SentenceTiming, 0, len(sentences))
	var current int64

	for i, s := range sentences {
		frac := float64(len([]rune(s.Text))) / float64(totalChars)
		end := current + int64(frac*float64(totalDurationMS))
		if i == len(sentences)-1 {
			end = totalDurationMS
		}
		result = append(result, SentenceTiming{
			Sentence:  s.Text,
			StartMS:   current,
			EndMS:     end,
			StartChar: s.StartChar,
			EndChar:   s.EndChar,
		})
		current = end
	}
	return result
}

// Sentence is one sentence of the input with its rune offsets.
type Sentence struct {
	Text      string
	StartChar int
	EndChar   int
}

// SplitSentences splits text after runs of sentence-ending punctuation
// followed by whitespace, preserving each sentence's offsets in the
// original text. Text with no terminal punctuation yields one sentence
// covering the whole input.
func SplitSentences(text string) []Sentence {
	runes := []rune(text)
	var out []Sentence

	start := 0
	i := 0
	for i < len(runes) {
		if isSentenceEnd(runes[i]) {
			// Consume the full punctuation run ("..." or "?!").
			for i < len(runes) && isSentenceEnd(runes[i]) {
				i++
			}
			if i < len(runes) && unicode.IsSpace(runes[i]) {
				end := i
				if s := makeSentence(runes, start, end); s != nil {
					out = append(out, *s)
				}
				for i < len(runes) && unicode.IsSpace(runes[i]) {
					i++
				}
				start = i
			}
			continue
		}
		i++
	}
	if s := makeSentence(runes, start, len(runes)); s != nil {
		out = append(out, *s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// makeSentence builds a Sentence for runes[start:end], or nil when the
// range is empty.
func makeSentence(runes []rune, start, end int) *Sentence {
	if start >= end {
		return nil
	}
	return &Sentence{
		Text:      string(runes[start:end]),
		StartChar: start,
		EndChar:   end,
	}
}
