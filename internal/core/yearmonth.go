package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinYear  = 1900
	MaxYear  = 2099
	January  = 1
	December = 12
)

var ErrInvalidYearMonth = errors.New("Expecting a valid date in form YYYY-MM")

// YearMonth is a calendar month in YYYY-MM form.
type YearMonth string

// ParseYearMonth accepts exactly four year digits and two month digits
// separated by a single dash, within MinYear..MaxYear.
func ParseYearMonth(s string) (YearMonth, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return "", ErrInvalidYearMonth
	}
	yearStr, monthStr := parts[0], parts[1]
	if len(yearStr) != 4 || len(monthStr) != 2 || !allDigits(yearStr) || !allDigits(monthStr) {
		return "", ErrInvalidYearMonth
	}
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	if year < MinYear || year > MaxYear || month < January || month > December {
		return "", ErrInvalidYearMonth
	}
	return YearMonth(s), nil
}

// YearMonthOf returns the month t falls in, in t's own location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

func (ym YearMonth) String() string {
	return string(ym)
}

// Year and Month assume ym came from ParseYearMonth or YearMonthOf.
func (ym YearMonth) Year() int {
	y, _ := strconv.Atoi(string(ym)[:4])
	return y
}

func (ym YearMonth) Month() int {
	m, _ := strconv.Atoi(string(ym)[5:])
	return m
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
