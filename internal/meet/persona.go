package meet

import (
	"math/rand/v2"
	"strings"
)

var personaFirstNames = []string{
	"Zeynep", "Melisa", "Elif", "Ayşe", "Ece", "Merve", "Sude", "İrem",
	"Buse", "Ceren", "Selin", "Derya", "Yağmur", "Eylül", "Naz", "İlayda",
	"Azra", "Aslı", "Nisa", "Bahar",
}

var personaLastNames = []string{
	"Yılmaz", "Kaya", "Demir", "Çelik", "Şahin", "Yıldız", "Aydın",
	"Öztürk", "Arslan", "Doğan", "Koç", "Polat", "Korkmaz", "Aksoy",
	"Eren", "Güneş", "Keskin", "Kara",
}

// personaRetries bounds how often PickPersonName resamples before it
// accepts a colliding name.
const personaRetries = 40

func randomPersonName() string {
	first := personaFirstNames[rand.IntN(len(personaFirstNames))]
	last := personaLastNames[rand.IntN(len(personaLastNames))]
	return first + " " + last
}

// PickPersonName draws a random full name avoiding (case-insensitively)
// the names in usedLower. After the retry budget is exhausted a duplicate
// is accepted rather than failing.
func PickPersonName(usedLower map[string]struct{}) string {
	for i := 0; i < personaRetries; i++ {
		full := randomPersonName()
		if _, used := usedLower[strings.ToLower(full)]; !used {
			return full
		}
	}
	return randomPersonName()
}
