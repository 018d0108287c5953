package nlp

import "strings"

var irregular = map[string]string{
	"data": "datum", "criteria": "criterion", "analyses": "analysis",
	"indices": "index", "matrices": "matrix", "people": "person",
	"children": "child", "men": "man", "women": "woman",
	"is": "be", "are": "be", "was": "be", "were": "be", "been": "be", "being": "be",
	"has": "have", "had": "have", "having": "have",
	"does": "do", "did": "do", "done": "do",
	"built": "build", "led": "lead", "made": "make", "ran": "run",
	"written": "write", "wrote": "write", "taught": "teach", "thought": "think",
	"brought": "bring", "bought": "buy", "sought": "seek", "held": "hold",
	"kept": "keep", "met": "meet", "paid": "pay", "said": "say",
	"sent": "send", "spent": "spend", "took": "take", "taken": "take",
	"went": "go", "gone": "go", "gave": "give", "given": "give",
	"knew": "know", "known": "know", "grew": "grow", "grown": "grow",
	"writing": "write", "making": "make", "taking": "take", "using": "use",
	"used": "use", "coding": "code", "driving": "drive",
	"drove": "drive", "driven": "drive", "chose": "choose", "chosen": "choose",
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

var nounRules = []suffixRule{
	{"ies", "y", 2},
	{"sses", "ss", 2},
	{"shes", "sh", 2},
	{"ches", "ch", 2},
	{"xes", "x", 2},
	{"ss", "ss", 2},
	{"us", "us", 2},
	{"is", "is", 2},
	{"s", "", 3},
}

var verbRules = []suffixRule{
	{"ies", "y", 2},
	{"ied", "y", 2},
	{"ying", "y", 2},
	{"sses", "ss", 2},
	{"shes", "sh", 2},
	{"ches", "ch", 2},
	{"xes", "x", 2},
	{"ating", "ate", 2},
	{"izing", "ize", 2},
	{"ising", "ise", 2},
	{"uring", "ure", 2},
	{"ving", "ve", 2},
	{"gging", "g", 2},
	{"aging", "age", 2},
	{"ncing", "nce", 2},
	{"ucing", "uce", 2},
	{"iding", "ide", 2},
	{"ated", "ate", 2},
	{"ized", "ize", 2},
	{"ised", "ise", 2},
	{"ured", "ure", 2},
	{"ved", "ve", 2},
	{"gged", "g", 2},
	{"aged", "age", 2},
	{"nced", "nce", 2},
	{"uced", "uce", 2},
	{"ided", "ide", 2},
	{"ing", "", 3},
	{"ed", "", 3},
	{"ss", "ss", 2},
	{"es", "e", 3},
	{"s", "", 3},
}

// Lemmatize reduces a lower-cased word to its dictionary form using the
// irregular table, then tag-specific suffix rules. Proper nouns other than
// plural ones are returned unchanged.
func Lemmatize(word, tag string) string {
	if lemma, ok := irregular[word]; ok {
		return lemma
	}
	switch {
	case tag == "NNP":
		return word
	case strings.HasPrefix(tag, "NN"):
		return applyRules(word, nounRules)
	case tag == "VB" || tag == "VBP":
		return word
	case strings.HasPrefix(tag, "VB"):
		return undouble(applyRules(word, verbRules), word)
	}
	return word
}

func applyRules(word string, rules []suffixRule) string {
	for _, rule := range rules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
			return word
		}
	}
	return word
}

// undouble collapses a doubled final consonant left by stripping -ing/-ed,
// as in running or planned.
func undouble(stem, original string) string {
	if stem == original || len(stem) < 3 {
		return stem
	}
	last, prev := stem[len(stem)-1], stem[len(stem)-2]
	if last == prev && !strings.ContainsRune("aeiouslz", rune(last)) {
		return stem[:len(stem)-1]
	}
	return stem
}
