package embedding

import (
	"hash/fnv"
	"strings"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs (for testing or fallback).
type SimpleTokenizer struct{}

const (
	clsToken  = 101
	sepToken  = 102
	vocabSize = 30000
)

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	words := SplitWords(strings.ToLower(text))
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	pos := 1
	for _, word := range words {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word) % vocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepToken
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative FNV-1a hash of s.
func HashString(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}
