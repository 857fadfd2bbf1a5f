package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ranked is a named amount, e.g. the total committed to one payee.
type Ranked struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Point is the total committed on one day.
type Point struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Total sums every amount.
func Total(cs []Commitment) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range cs {
		sum = sum.Add(c.Amount)
	}
	return sum
}

// TopPayees returns the n payees with the largest totals. n <= 0 returns all.
func TopPayees(cs []Commitment, n int) []Ranked {
	return top(sumBy(cs, func(c Commitment) string { return c.Payee }), n)
}

// TopAgencies returns the n agencies with the largest totals. n <= 0 returns all.
func TopAgencies(cs []Commitment, n int) []Ranked {
	return top(sumBy(cs, func(c Commitment) string { return c.Agency }), n)
}

// ByCategory returns the total per expense category, ordered by name.
func ByCategory(cs []Commitment) []Ranked {
	out := sumBy(cs, func(c Commitment) string { return c.Category })
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Timeline returns the total per issue date, oldest first.
func Timeline(cs []Commitment) []Point {
	byDay := make(map[time.Time]decimal.Decimal)
	for _, c := range cs {
		day := Day(c.IssuedOn)
		byDay[day] = byDay[day].Add(c.Amount)
	}

	out := make([]Point, 0, len(byDay))
	for day, amount := range byDay {
		out = append(out, Point{Date: day, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sumBy(cs []Commitment, key func(Commitment) string) []Ranked {
	sums := make(map[string]decimal.Decimal)
	for _, c := range cs {
		k := key(c)
		sums[k] = sums[k].Add(c.Amount)
	}
	out := make([]Ranked, 0, len(sums))
	for name, amount := range sums {
		out = append(out, Ranked{Name: name, Amount: amount})
	}
	return out
}

// top orders by amount, largest first, with ties broken by name.
func top(rs []Ranked, n int) []Ranked {
	sort.Slice(rs, func(i, j int) bool {
		if c := rs[i].Amount.Cmp(rs[j].Amount); c != 0 {
			return c > 0
		}
		return rs[i].Name < rs[j].Name
	})
	if n > 0 && n < len(rs) {
		rs = rs[:n]
	}
	return rs
}

// FormatBRL formats an amount the Brazilian way: "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	s := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "R$ " + sign + b.String() + "," + frac
}

// Report is the dashboard view of one date range.
type Report struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Count       int             `json:"count"`
	Total       string          `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TopPayees   []Ranked        `json:"top_payees"`
	TopAgencies []Ranked        `json:"top_agencies"`
	Categories  []Ranked        `json:"categories"`
	Timeline    []Point         `json:"timeline"`
}

// Summarize builds the report for commitments already fetched for [from, to].
func Summarize(cs []Commitment, from, to time.Time, payees, agencies int) Report {
	total := Total(cs)
	return Report{
		From:        Day(from),
		To:          Day(to),
		Count:       len(cs),
		Total:       FormatBRL(total),
		TotalAmount: total,
		TopPayees:   TopPayees(cs, payees),
		TopAgencies: TopAgencies(cs, agencies),
		Categories:  ByCategory(cs),
		Timeline:    Timeline(cs),
	}
}
