package analyze

// stopwords is a compact English function-word list. Kept in-package: the
// bleve token filters ship equivalent lists but pulling the whole index
// library in for a word set is not worth it.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an",
		"and", "any", "are", "as", "at", "be", "because", "been", "before",
		"being", "below", "between", "both", "but", "by", "can", "could",
		"did", "do", "does", "doing", "down", "during", "each", "few", "for",
		"from", "further", "had", "has", "have", "having", "he", "her",
		"here", "hers", "him", "his", "how", "i", "if", "in", "into", "is",
		"it", "its", "just", "me", "more", "most", "my", "no", "nor", "not",
		"now", "of", "off", "on", "once", "only", "or", "other", "our",
		"ours", "out", "over", "own", "s", "same", "she", "should", "so",
		"some", "such", "t", "than", "that", "the", "their", "theirs",
		"them", "then", "there", "these", "they", "this", "those", "through",
		"to", "too", "under", "until", "up", "very", "was", "we", "were",
		"what", "when", "where", "which", "while", "who", "whom", "why",
		"will", "with", "would", "you", "your", "yours",
	} {
		stopwords[w] = struct{}{}
	}
}
