package textnorm

// Stopword lists are embedded so normalization works offline and stays
// byte-for-byte identical between index time and query time.

var englishStopwords = toSet([]string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
	"at", "by", "for", "with", "about", "against", "between", "into",
	"through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "once", "here", "there", "all", "any", "both", "each",
	"few", "more", "most", "other", "some", "such", "no", "nor", "not",
	"only", "own", "same", "so", "than", "too", "very", "can", "will",
	"just", "should", "now", "of", "is", "are", "was", "were", "be",
	"been", "being", "have", "has", "had", "having", "do", "does", "did",
	"doing", "it", "its", "this", "that", "these", "those", "i", "me",
	"my", "we", "our", "you", "your", "he", "him", "his", "she", "her",
	"they", "them", "their", "what", "which", "who", "whom", "as", "until",
	"while", "how", "why", "where",
})

var russianStopwords = toSet([]string{
	"и", "в", "во", "не", "что", "он", "на", "я", "с", "со", "как", "а",
	"то", "все", "она", "так", "его", "но", "да", "ты", "к", "у", "же",
	"вы", "за", "бы", "по", "только", "ее", "мне", "было", "вот", "от",
	"меня", "еще", "нет", "о", "из", "ему", "теперь", "когда", "даже",
	"ну", "вдруг", "ли", "если", "уже", "или", "ни", "быть", "был",
	"него", "до", "вас", "нибудь", "опять", "уж", "вам", "ведь", "там",
	"потом", "себя", "ничего", "ей", "может", "они", "тут", "где", "есть",
	"надо", "ней", "для", "мы", "тебя", "их", "чем", "была", "сам", "чтоб",
	"без", "будто", "чего", "раз", "тоже", "себе", "под", "будет", "тогда",
	"кто", "этот", "того", "потому", "этого", "какой", "ним", "здесь",
	"этом", "один", "почти", "мой", "тем", "чтобы", "нее", "были", "куда",
	"зачем", "всех", "можно", "при", "об", "хоть", "после", "над", "больше",
	"тот", "через", "эти", "нас", "про", "них", "какая", "много", "разве",
	"эту", "моя", "свою", "этой", "перед", "иногда", "лучше", "чуть",
	"том", "такой", "им", "более", "всегда", "конечно", "всю", "между",
})

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
