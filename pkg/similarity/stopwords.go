package similarity

// English stop words, applied after Normalize so contractions appear
// without apostrophes.
var stopWords = toSet(
	"a", "about", "above", "after", "again", "against", "all", "almost", "also", "am",
	"among", "an", "and", "any", "are", "as", "at", "be", "because", "been",
	"before", "being", "below", "between", "both", "but", "by", "can", "cannot", "could",
	"did", "do", "does", "doing", "dont", "down", "during", "each", "either", "else",
	"ever", "every", "few", "for", "from", "further", "had", "has", "have", "having",
	"he", "her", "here", "hers", "herself", "him", "himself", "his", "how", "however",
	"i", "if", "im", "in", "into", "is", "isnt", "it", "its", "itself",
	"ive", "me", "might", "more", "most", "much", "must", "my", "myself", "neither",
	"no", "nor", "not", "of", "off", "often", "on", "once", "only", "or",
	"other", "our", "ours", "ourselves", "out", "over", "own", "same", "she", "should",
	"so", "some", "such", "than", "that", "thats", "the", "their", "theirs", "them",
	"themselves", "then", "there", "these", "they", "this", "those", "though", "through", "thus",
	"to", "too", "under", "until", "up", "upon", "us", "very", "was", "we",
	"were", "what", "when", "where", "whether", "which", "while", "who", "whom", "whose",
	"why", "will", "with", "within", "without", "would", "yet", "you", "your", "yours",
	"yourself", "yourselves",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
