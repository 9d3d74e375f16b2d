package ptbr

import "strings"

var (
	unitWords = [10]string{
		"zero", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
	}
	teenWords = [10]string{
		"dez", "onze", "doze", "treze", "quatorze", "quinze",
		"dezesseis", "dezessete", "dezoito", "dezenove",
	}
	tenWords = [10]string{
		"", "", "vinte", "trinta", "quarenta", "cinquenta",
		"sessenta", "setenta", "oitenta", "noventa",
	}
	hundredWords = [10]string{
		"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos",
		"seiscentos", "setecentos", "oitocentos", "novecentos",
	}
)

// scale — разряд группы из трёх цифр (тысячи, миллионы, ...).
type scale struct {
	singular string
	plural   string
}

// Индекс = номер группы справа (0 — единицы).
var scales = []scale{
	{"", ""},
	{"mil", "mil"},
	{"milhão", "milhões"},
	{"bilhão", "bilhões"},
	{"trilhão", "trilhões"},
	{"quatrilhão", "quatrilhões"},
	{"quintilhão", "quintilhões"},
}

// IntegerWords записывает целое число прописью: 1234 → "mil duzentos e trinta e quatro".
func IntegerWords(n int64) string {
	if n == 0 {
		return unitWords[0]
	}
	if n < 0 {
		// -n переполняется для MinInt64, поэтому работаем с uint64
		return "menos " + uintWords(uint64(-(n + 1))+1)
	}
	return uintWords(uint64(n))
}

// CurrencyWords — сумма в реалах прописью: 1500 → "mil e quinhentos reais".
func CurrencyWords(n int64) string {
	return IntegerWords(n) + " reais"
}

func uintWords(n uint64) string {
	var groups []int
	for n > 0 {
		groups = append(groups, int(n%1000))
		n /= 1000
	}

	// Индекс младшей ненулевой группы — перед ней может потребоваться "e".
	last := -1
	for i, g := range groups {
		if g != 0 {
			last = i
			break
		}
	}

	var parts []string
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			continue
		}

		var words string
		switch {
		case i == 0:
			words = groupWords(g)
		case i == 1 && g == 1:
			words = "mil"
		case g == 1:
			words = "um " + scales[i].singular
		default:
			words = groupWords(g) + " " + scales[i].plural
		}

		if len(parts) > 0 && i == last && (g < 100 || g%100 == 0) {
			parts = append(parts, "e "+words)
		} else {
			parts = append(parts, words)
		}
	}
	return strings.Join(parts, " ")
}

// groupWords записывает число 1-999.
func groupWords(n int) string {
	if n == 100 {
		return "cem"
	}

	h, rest := n/100, n%100
	var parts []string
	if h > 0 {
		parts = append(parts, hundredWords[h])
	}
	if rest > 0 {
		parts = append(parts, belowHundred(rest))
	}
	return strings.Join(parts, " e ")
}

func belowHundred(n int) string {
	switch {
	case n < 10:
		return unitWords[n]
	case n < 20:
		return teenWords[n-10]
	case n%10 == 0:
		return tenWords[n/10]
	default:
		return tenWords[n/10] + " e " + unitWords[n%10]
	}
}
