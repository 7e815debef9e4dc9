package invoice

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyDraft is returned when no line items could be parsed from the text.
var ErrEmptyDraft = errors.New("invoice: no billable items found in text")

// Draft is the structured result of parsing free-form invoice text.
type Draft struct {
	ClientName string
	Items      []LineItem
	DueInDays  int
	Notes      string
}

var (
	clientRe = regexp.MustCompile(`(?i)^(?:invoice\s+)?(?:for|to|client:?)\s+(.+?)\s*$`)
	dueRe    = regexp.MustCompile(`(?i)\b(?:due\s+in\s+(\d+)\s+days?|net\s*(\d+))\b`)
	// "Logo design for 10 hours at $95/hour"
	qtyItemRe = regexp.MustCompile(`(?i)^(.+?)(?:\s+for|[,:])?\s+(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|days?|units?|items?)\s*(?:at|@)\s*\$?(\d+(?:\.\d+)?)(?:\s*(?:/|per\s)\s*\w+)?\.?$`)
	// "Hosting - $25" / "Domain renewal: $14.99"
	flatItemRe = regexp.MustCompile(`^(.+?)\s*[-–:]\s*\$(\d+(?:\.\d+)?)\.?$`)
)

// ParseDraft extracts a client name, line items and payment terms from
// free-form text, one fact per line. The grammar is fixed and deterministic:
//
//	for <client>              names the client
//	<desc> for <N> hours at $<rate>   a quantity-times-rate item
//	<desc> - $<amount>        a flat-amount item
//	due in <N> days / net <N> payment terms (default 30)
//
// Unrecognized lines are kept as invoice notes. Returns ErrEmptyDraft when no
// line items parse.
func ParseDraft(text string) (*Draft, error) {
	d := &Draft{DueInDays: 30}
	var notes []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}

		if m := dueRe.FindStringSubmatch(line); m != nil {
			days := m[1]
			if days == "" {
				days = m[2]
			}
			if n, err := strconv.Atoi(days); err == nil && n > 0 {
				d.DueInDays = n
			}
			line = strings.TrimSpace(strings.Trim(dueRe.ReplaceAllString(line, ""), " ,.;"))
			if line == "" {
				continue
			}
		}

		if m := qtyItemRe.FindStringSubmatch(line); m != nil {
			qty, qerr := strconv.ParseFloat(m[2], 64)
			rate, rerr := strconv.ParseFloat(m[3], 64)
			if qerr == nil && rerr == nil && qty > 0 {
				d.Items = append(d.Items, LineItem{
					Description: strings.TrimRight(strings.TrimSpace(m[1]), ",:"),
					Quantity:    qty,
					UnitCents:   dollarsToCents(rate),
				})
				continue
			}
		}

		if m := flatItemRe.FindStringSubmatch(line); m != nil {
			amount, err := strconv.ParseFloat(m[2], 64)
			if err == nil {
				d.Items = append(d.Items, LineItem{
					Description: strings.TrimSpace(m[1]),
					Quantity:    1,
					UnitCents:   dollarsToCents(amount),
				})
				continue
			}
		}

		if m := clientRe.FindStringSubmatch(line); m != nil && d.ClientName == "" {
			d.ClientName = m[1]
			continue
		}

		notes = append(notes, line)
	}

	if len(d.Items) == 0 {
		return nil, ErrEmptyDraft
	}
	d.Notes = strings.Join(notes, "\n")
	return d, nil
}

func dollarsToCents(dollars float64) int64 {
	return int64(dollars*100 + 0.5)
}
