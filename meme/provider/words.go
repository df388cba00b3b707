package provider

import (
	_ "embed"
	"math/rand/v2"
	"strings"
)

//go:embed words.txt
var wordList string

// Words picks random dictionary words to seed template searches.
type Words struct {
	list []string
	rnd  func(n int) int
}

// NewWords loads the embedded word list.
func NewWords() *Words {
	return &Words{list: strings.Fields(wordList), rnd: rand.IntN}
}

// Random returns one word from the list.
func (w *Words) Random() string {
	if len(w.list) == 0 {
		return "meme"
	}
	return w.list[w.rnd(len(w.list))]
}

// Len reports the number of words available.
func (w *Words) Len() int { return len(w.list) }
