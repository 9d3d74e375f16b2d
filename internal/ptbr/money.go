package ptbr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money — денежная сумма в сентаво (1 real = 100 centavos).
// Целочисленное представление исключает ошибки округления float.
type Money int64

// Reais возвращает целую часть суммы в реалах (отбрасывая сентаво).
func (m Money) Reais() int64 {
	return int64(m) / 100
}

// Centavos возвращает дробную часть суммы (0-99).
func (m Money) Centavos() int64 {
	c := int64(m) % 100
	if c < 0 {
		c = -c
	}
	return c
}

// ParseCurrency разбирает денежную сумму в одной из записей:
// "1.234,56", "1234,56", "1234.56", "R$ 200".
//
// Правила разделителей:
//   - ровно одна запятая и нет точек — запятая десятичная;
//   - есть точки и ровно одна запятая — точки разделяют тысячи, запятая десятичная;
//   - иначе строка считается десятичной записью с точкой.
func ParseCurrency(s string) (Money, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas == 1 && dots == 0:
		s = strings.Replace(s, ",", ".", 1)
	case commas == 1 && dots >= 1:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	m, err := parseDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("%w: valor monetário inválido %q", ErrInvalidInput, raw)
	}
	return m, nil
}

// ParseInteger разбирает целое число, записанное с разделителем тысяч
// ("1.000", "1000") или с дробной частью ("1000,5" → 1000).
func ParseInteger(s string) (int64, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	s = strings.ReplaceAll(s, ".", "")

	if s != "" && isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: número inválido %q", ErrInvalidInput, raw)
		}
		return n, nil
	}

	m, err := parseDecimal(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, fmt.Errorf("%w: número inválido %q", ErrInvalidInput, raw)
	}
	return m.Reais(), nil
}

// FormatCurrency форматирует сумму как "1.234,50" (без символа валюты).
func FormatCurrency(m Money) string {
	sign, abs := magnitude(int64(m))
	return fmt.Sprintf("%s%s,%02d", sign, groupDigits(strconv.FormatUint(abs/100, 10)), abs%100)
}

// FormatReais форматирует сумму с символом валюты: "R$ 1.234,50".
func FormatReais(m Money) string {
	return "R$ " + FormatCurrency(m)
}

// ThousandsGrouped разделяет разряды целого числа точкой: 1234567 → "1.234.567".
func ThousandsGrouped(n int64) string {
	sign, abs := magnitude(n)
	return sign + groupDigits(strconv.FormatUint(abs, 10))
}

// magnitude возвращает знак и модуль числа.
// Модуль MinInt64 не помещается в int64, поэтому он возвращается как uint64.
func magnitude(n int64) (string, uint64) {
	if n < 0 {
		return "-", uint64(-(n + 1)) + 1
	}
	return "", uint64(n)
}

// groupDigits вставляет точку между группами по три цифры.
func groupDigits(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// parseDecimal разбирает "123", "123.4", "123.456" в сентаво.
// Третий и следующие знаки после точки округляются (half up).
func parseDecimal(s string) (Money, error) {
	if s == "" {
		return 0, fmt.Errorf("пустое значение")
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (hasDot && fracPart != "" && !isDigits(fracPart)) {
		return 0, fmt.Errorf("недопустимые символы в %q", s)
	}
	if hasDot && fracPart == "" && intPart == "0" {
		return 0, fmt.Errorf("нет цифр в %q", s)
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, err
	}
	// whole*100 плюс округлённые сентаво должны помещаться в int64.
	if whole > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("значение %q выходит за пределы int64", s)
	}

	padded := fracPart + "000"
	cents, _ := strconv.ParseInt(padded[:2], 10, 64)
	if padded[2] >= '5' {
		cents++
	}

	return Money(whole*100 + cents), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
