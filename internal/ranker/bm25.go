// Package ranker implements C7: lexical (BM25) and semantic reranking of
// raw web-search results into a combined score, plus citation assignment.
package ranker

import (
	"math"
	"strings"
	"unicode"
)

// BM25 tuning constants; standard Okapi BM25 defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75

	// cjkThreshold is the fraction of CJK runes in a text above which the
	// bi-/tri-gram tokenizer is used instead of whitespace splitting.
	cjkThreshold = 0.10
)

// tokenize splits text into lexical terms using a language-aware strategy:
// predominantly-Han/Hiragana/Katakana/Hangul text is split into character
// bi- and tri-grams (whitespace carries little word-boundary signal in
// those scripts); everything else is lowercased and split on whitespace.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if isCJK(runes) {
		return cjkNgrams(runes)
	}
	return latinWords(text)
}

func isCJK(runes []rune) bool {
	if len(runes) == 0 {
		return false
	}
	cjkCount := 0
	letterCount := 0
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			continue
		}
		letterCount++
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjkCount++
		}
	}
	if letterCount == 0 {
		return false
	}
	return float64(cjkCount)/float64(letterCount) >= cjkThreshold
}

func latinWords(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

// cjkNgrams emits both bi-grams and tri-grams over the non-space runes, a
// cheap substitute for a real CJK segmenter.
func cjkNgrams(runes []rune) []string {
	var filtered []rune
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			filtered = append(filtered, unicode.ToLower(r))
		}
	}
	if len(filtered) < 2 {
		return []string{string(filtered)}
	}
	out := make([]string, 0, len(filtered)*2)
	for i := 0; i < len(filtered)-1; i++ {
		out = append(out, string(filtered[i:i+2]))
	}
	for i := 0; i < len(filtered)-2; i++ {
		out = append(out, string(filtered[i:i+3]))
	}
	return out
}

// corpusDoc is one document's term-frequency map plus its length, precomputed
// once so scoring every query term against every document is O(terms).
type corpusDoc struct {
	termFreq map[string]int
	length   int
}

// bm25Corpus scores a fixed set of documents against arbitrary queries,
// amortizing per-document tokenization and the average-length computation.
type bm25Corpus struct {
	docs    []corpusDoc
	avgLen  float64
	docFreq map[string]int
}

func newBM25Corpus(texts []string) *bm25Corpus {
	docs := make([]corpusDoc, len(texts))
	docFreq := make(map[string]int)
	totalLen := 0

	for i, text := range texts {
		terms := tokenize(text)
		tf := make(map[string]int, len(terms))
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			tf[t]++
			if !seen[t] {
				docFreq[t]++
				seen[t] = true
			}
		}
		docs[i] = corpusDoc{termFreq: tf, length: len(terms)}
		totalLen += len(terms)
	}

	avgLen := 0.0
	if len(docs) > 0 {
		avgLen = float64(totalLen) / float64(len(docs))
	}
	return &bm25Corpus{docs: docs, avgLen: avgLen, docFreq: docFreq}
}

// score returns the raw (unnormalized) BM25 score of document i against the
// tokenized query terms.
func (c *bm25Corpus) score(i int, queryTerms []string) float64 {
	doc := c.docs[i]
	n := float64(len(c.docs))
	var total float64
	for _, term := range queryTerms {
		freq := doc.termFreq[term]
		if freq == 0 {
			continue
		}
		df := float64(c.docFreq[term])
		idf := idf(n, df)
		tf := float64(freq)
		denom := tf + bm25K1*(1-bm25B+bm25B*float64(doc.length)/maxFloat(c.avgLen, 1))
		total += idf * (tf * (bm25K1 + 1) / denom)
	}
	return total
}

// idf is the standard BM25 inverse document frequency with the +1 smoothing
// that keeps it non-negative for terms appearing in every document.
func idf(n, df float64) float64 {
	v := (n-df+0.5)/(df+0.5) + 1
	if v < 1 {
		v = 1
	}
	return math.Log(v)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
