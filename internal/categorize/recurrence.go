package categorize

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yakoovad/finflow/internal/model"
)

const (
	// LookbackDays is the window the detector is fed with.
	LookbackDays   = 180
	minOccurrences = 3
)

type Item struct {
	ID       string
	Name     string
	Merchant string
	Amount   decimal.Decimal
	Currency string
	Date     time.Time
}

type Series struct {
	MerchantKey    string
	Name           string
	Amount         decimal.Decimal
	Currency       string
	Frequency      model.TransactionFrequency
	LastDate       time.Time
	NextDate       time.Time
	TransactionIDs []string
}

type band struct {
	frequency model.TransactionFrequency
	mean      float64
	tolerance float64
	maxStdDev float64
}

var bands = []band{
	{model.FrequencyMonthly, 30, 3, 3},
	{model.FrequencyBiweekly, 14, 2, 2},
	{model.FrequencyWeekly, 7, 1, 1},
}

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)
	digits   = regexp.MustCompile(`\d+`)
	spaces   = regexp.MustCompile(`\s+`)
)

// MerchantKey normalises a merchant or transaction name so that
// "NETFLIX.COM 1234" and "Netflix.com #5678" group together.
func MerchantKey(name, merchant string) string {
	s := merchant
	if s == "" {
		s = name
	}
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	s = digits.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

type groupKey struct {
	merchant string
	amount   string
}

// Detect groups items by merchant key and whole-unit amount and returns the groups
// whose spacing matches a frequency band.
func Detect(items []Item) []Series {
	groups := make(map[groupKey][]Item)
	var order []groupKey

	for _, it := range items {
		k := groupKey{merchant: MerchantKey(it.Name, it.Merchant), amount: it.Amount.Round(0).String()}
		if k.merchant == "" {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}

	var out []Series
	for _, k := range order {
		g := groups[k]
		sort.Slice(g, func(i, j int) bool { return g[i].Date.Before(g[j].Date) })

		dates := distinctDays(g)
		if len(dates) < minOccurrences {
			continue
		}

		mean, stddev := intervalStats(dates)
		freq, ok := classify(mean, stddev)
		if !ok {
			continue
		}

		last := dates[len(dates)-1]
		ids := make([]string, 0, len(g))
		for _, it := range g {
			ids = append(ids, it.ID)
		}

		latest := g[len(g)-1]
		name := latest.Merchant
		if name == "" {
			name = latest.Name
		}

		out = append(out, Series{
			MerchantKey:    k.merchant,
			Name:           name,
			Amount:         latest.Amount.Round(0),
			Currency:       latest.Currency,
			Frequency:      freq,
			LastDate:       last,
			NextDate:       last.AddDate(0, 0, int(math.Round(mean))),
			TransactionIDs: ids,
		})
	}
	return out
}

func distinctDays(sorted []Item) []time.Time {
	var out []time.Time
	for _, it := range sorted {
		d := time.Date(it.Date.Year(), it.Date.Month(), it.Date.Day(), 0, 0, 0, 0, time.UTC)
		if len(out) > 0 && out[len(out)-1].Equal(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// intervalStats returns the mean and population standard deviation, in days, of the gaps between dates.
func intervalStats(dates []time.Time) (float64, float64) {
	n := len(dates) - 1
	gaps := make([]float64, n)
	sum := 0.0
	for i := 1; i < len(dates); i++ {
		gaps[i-1] = dates[i].Sub(dates[i-1]).Hours() / 24
		sum += gaps[i-1]
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	return mean, math.Sqrt(variance / float64(n))
}

func classify(mean, stddev float64) (model.TransactionFrequency, bool) {
	for _, b := range bands {
		if math.Abs(mean-b.mean) <= b.tolerance && stddev <= b.maxStdDev {
			return b.frequency, true
		}
	}
	return "", false
}
