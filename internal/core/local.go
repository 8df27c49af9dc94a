package core

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var localStarters = []string{
	"Hmm anladım. Biraz daha açar mısın?",
	"Güzelmiş. Peki seni en çok ne motive ediyor?",
	"Bence de ilginç. Şu an günün nasıl gidiyor?",
	"Ben de benzer şeyler yaşamıştım. Sen genelde ne yaparsın böyle durumlarda?",
	"Tamamdır. Şunu merak ettim: bunu ne zamandır düşünüyorsun?",
}

// localReply is the deterministic last resort of the cascade: a keyword
// match against the caller's latest message, with a randomized generic
// starter otherwise.
func localReply(personName, lastUserText string) string {
	t := strings.ToLower(lastUserText)

	switch {
	case containsAny(t, "selam", "merhaba", "hey"):
		return fmt.Sprintf("Merhaba! Ben %s. Nasılsın?", personName)
	case containsAny(t, "nasılsın", "naber", "napıyorsun"):
		return "İyiyim ya, teşekkür ederim. Sen nasılsın?"
	case containsAny(t, "nereden", "nerelisin"):
		return "Ben İstanbul tarafındayım. Sen nereden yazıyorsun?"
	case containsAny(t, "yaş"):
		return "Yaş muhabbetini çok sevmiyorum ama merak ettim: sen nelerden hoşlanırsın?"
	case containsAny(t, "müzik", "şarkı", "spotify"):
		return "Müzik iyi geliyor ya. En son hangi şarkıyı döngüye aldın?"
	case containsAny(t, "film", "dizi"):
		return "Tam benlik konu. Son izlediğin dizi/film neydi, önerir misin?"
	}

	return localStarters[rand.IntN(len(localStarters))]
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
