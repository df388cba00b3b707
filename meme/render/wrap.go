package render

import "strings"

// WrapLines greedily packs words split on single spaces into lines no wider
// than maxWidth as reported by measure. Runs of spaces inside a caption are
// kept as typed. A word that alone exceeds maxWidth is kept whole on its own
// line. Empty text yields a single empty line.
func WrapLines(text string, maxWidth float64, measure func(string) float64) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Split(text, " ") {
		if cur == "" {
			cur = word
			continue
		}
		candidate := cur + " " + word
		if measure(candidate) > maxWidth {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur = candidate
	}
	return append(lines, cur)
}
