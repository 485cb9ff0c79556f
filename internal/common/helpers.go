// Package common содержит общие утилиты, используемые во всём проекте.
// helpers.go — работа с «днём голосования» и разбор списков чисел.
package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout — формат даты в API и в ключах кеша.
const DayLayout = "2006-01-02"

// VoteDay возвращает UTC-день, к которому относится момент t.
// Границы дня — полночь по UTC, независимо от зоны t.
//
// Пример:
//
//	VoteDay(2026-10-19T23:30:00-05:00) → 2026-10-20T00:00:00Z
func VoteDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay разбирает дату "2006-01-02" или RFC3339-момент и возвращает UTC-день.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректная дата %q: ожидается YYYY-MM-DD", s)
	}
	return VoteDay(t), nil
}

// FormatDay форматирует день как "2006-01-02".
func FormatDay(day time.Time) string {
	return day.UTC().Format(DayLayout)
}

// ParseInt64CSV разбирает "1, 2,3" в []int64. Пустая строка — пустой список.
func ParseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
