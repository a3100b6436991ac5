package service

import (
	"time"

	"go-contacts-api/internal/model"
)

const birthdayKeyLayout = "01-02"

// birthdayKeys lists the month-day keys of every calendar day in
// [today, today+windowDays]. On Feb 28 of a non-leap year the key of Feb 29 is
// added as well.
func birthdayKeys(today time.Time, windowDays int) []string {
	keys := make([]string, 0, windowDays+2)
	seen := make(map[string]struct{}, windowDays+2)

	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	for i := 0; i <= windowDays; i++ {
		day := today.AddDate(0, 0, i)
		add(day.Format(birthdayKeyLayout))
		if day.Month() == time.February && day.Day() == 28 && !isLeapYear(day.Year()) {
			add("02-29")
		}
	}

	return keys
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func anniversary(birthday model.Date, year int) time.Time {
	month, day := birthday.Month(), birthday.Day()
	if month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// daysUntilBirthday counts whole days from today to the next anniversary,
// zero when it is today.
func daysUntilBirthday(birthday model.Date, today time.Time) int {
	next := anniversary(birthday, today.Year())
	if next.Before(today) {
		next = anniversary(birthday, today.Year()+1)
	}
	return int(next.Sub(today).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
