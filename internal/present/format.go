// Package present turns entities into display-ready values: counts,
// durations, relative times, cards, links and navigation.
package present

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCount abbreviates large counters: 1234 -> "1.2K", 2500000 -> "2.5M".
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatDuration renders seconds as h:mm:ss, or m:ss under an hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PlaylistDuration renders a total as "x hr y min" or "y min".
func PlaylistDuration(totalSeconds int) string {
	h, m := totalSeconds/3600, (totalSeconds%3600)/60
	if h > 0 {
		return fmt.Sprintf("%d hr %d min", h, m)
	}
	return fmt.Sprintf("%d min", m)
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders a wallet amount as rupees with two decimals and
// thousands separators, e.g. "₹1,234.50".
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + "₹" + fixed
	}
	return sign + "₹" + printer.Sprintf("%d", n) + "." + frac
}

const (
	minutesInDay       = 1440
	minutesInTwoDays   = 2520
	minutesInMonth     = 43200
	minutesInTwoMonths = 86400
)

// TimeAgo describes t relative to now in the "3 days ago" style used across
// the app. Buckets follow the usual distance-in-words rules.
func TimeAgo(t, now time.Time) string {
	if t.After(now) {
		return "in " + distance(now, t)
	}
	return distance(t, now) + " ago"
}

func distance(from, to time.Time) string {
	minutes := int(math.Round(to.Sub(from).Minutes()))
	switch {
	case minutes == 0:
		return "less than a minute"
	case minutes < 45:
		return plural(minutes, "minute")
	case minutes < 90:
		return "about 1 hour"
	case minutes < minutesInDay:
		return "about " + plural(int(math.Round(float64(minutes)/60)), "hour")
	case minutes < minutesInTwoDays:
		return "1 day"
	case minutes < minutesInMonth:
		return plural(int(math.Round(float64(minutes)/minutesInDay)), "day")
	case minutes < minutesInTwoMonths:
		return "about " + plural(int(math.Round(float64(minutes)/minutesInMonth)), "month")
	}

	months := monthsBetween(from, to)
	if months < 12 {
		return plural(int(math.Round(float64(minutes)/minutesInMonth)), "month")
	}
	years, rem := months/12, months%12
	switch {
	case rem < 3:
		return "about " + plural(years, "year")
	case rem < 9:
		return "over " + plural(years, "year")
	default:
		return "almost " + plural(years+1, "year")
	}
}

// monthsBetween counts whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
