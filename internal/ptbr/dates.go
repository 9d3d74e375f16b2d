// Пакет ptbr — форматирование дат, денежных сумм и чисел прописью
// по правилам португальского языка (Бразилия).
// Все функции чистые: без состояния и побочных эффектов.
package ptbr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInput — некорректные входные данные (дата, сумма, число).
var ErrInvalidInput = errors.New("entrada inválida")

// Сообщение об ошибке формата даты, показывается пользователю формы.
const invalidDateMessage = "Data inválida. Use dd/mm/aa."

// Названия месяцев, индекс = номер месяца - 1.
var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthName возвращает название месяца по номеру (1-12).
func MonthName(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: mês %d fora do intervalo 1-12", ErrInvalidInput, month)
	}
	return monthNames[month-1], nil
}

// LongDate форматирует дату как "20 de Fevereiro de 2026".
func LongDate(t time.Time) string {
	// time.Month всегда в диапазоне 1-12
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// FormatLongDate форматирует дату из отдельных компонент.
// Возвращает ErrInvalidInput, если месяц вне диапазона.
func FormatLongDate(day, month, year int) (string, error) {
	name, err := MonthName(month)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d de %s de %d", day, name, year), nil
}

// ShortDateToLong преобразует "dd/mm/aa" или "dd/mm/aaaa" в длинную форму.
// Двузначный год: 00-79 → 2000-2079, 80-99 → 1980-1999.
// Несуществующие даты (31/02) отклоняются.
func ShortDateToLong(s string) (string, error) {
	t, err := ParseShortDate(s)
	if err != nil {
		return "", err
	}
	return FormatLongDate(t.Day(), int(t.Month()), t.Year())
}

// ParseShortDate разбирает "dd/mm/aa" или "dd/mm/aaaa" в календарную дату (UTC).
func ParseShortDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidInput, invalidDateMessage)
	}

	day, errDay := strconv.Atoi(parts[0])
	month, errMonth := strconv.Atoi(parts[1])
	year, errYear := strconv.Atoi(parts[2])
	if errDay != nil || errMonth != nil || errYear != nil || year < 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidInput, invalidDateMessage)
	}

	if len(parts[2]) == 2 {
		if year <= 79 {
			year += 2000
		} else {
			year += 1900
		}
	}

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidInput, invalidDateMessage)
	}

	// time.Date нормализует 31/02 в 03/03 — сверяем компоненты обратно
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidInput, invalidDateMessage)
	}
	return t, nil
}

// ValidateTime проверяет время в формате "hh:mm" (00:00-23:59)
// и возвращает нормализованное значение.
func ValidateTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return "", fmt.Errorf("%w: Hora inválida. Use hh:mm.", ErrInvalidInput)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return "", fmt.Errorf("%w: Hora inválida. Use hh:mm.", ErrInvalidInput)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}
