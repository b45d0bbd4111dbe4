package extraction

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/charlesng35/expensely/internal/models"
)

// ErrUnusablePayload is returned when the model reply is not a JSON object.
var ErrUnusablePayload = errors.New("extraction: model reply is not a JSON object")

// Receipt is a normalised extraction result. Every field holds a valid value.
type Receipt struct {
	VendorName    string               `json:"vendor_name"`
	Items         []Item               `json:"items"`
	Category      models.Category      `json:"category"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	ExpenseDate   time.Time            `json:"expense_date"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
}

// Item is a single extracted receipt line.
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	NetPrice decimal.Decimal `json:"net_price"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// Coerce normalises a raw model reply. Values outside the allow-lists become
// other, quantities are floored at 1, unreadable prices become 0 and an
// unreadable date becomes the date of now.
func Coerce(raw []byte, now time.Time) (*Receipt, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrUnusablePayload
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrUnusablePayload
	}

	receipt := &Receipt{
		VendorName:    firstString(doc, "vendor_name", "vendor", "company_name", "merchant"),
		Category:      models.CategoryOther,
		PaymentMethod: models.PaymentMethodOther,
		ExpenseDate:   dateOnly(now),
		Items:         []Item{},
	}
	if c, ok := models.ParseCategory(doc.Get("category").String()); ok {
		receipt.Category = c
	}
	if m, ok := models.ParsePaymentMethod(firstString(doc, "payment_method", "paymentMethod")); ok {
		receipt.PaymentMethod = m
	}
	if d, ok := parseDate(firstString(doc, "expense_date", "date")); ok {
		receipt.ExpenseDate = d
	}

	total := decimal.Zero
	doc.Get("items").ForEach(func(_, line gjson.Result) bool {
		if !line.IsObject() {
			return true
		}
		item := Item{
			Name:     strings.TrimSpace(line.Get("name").String()),
			Quantity: coerceQuantity(line.Get("quantity")),
			NetPrice: coercePrice(firstResult(line, "net_price", "netPrice", "price")),
		}
		total = total.Add(item.NetPrice)
		receipt.Items = append(receipt.Items, item)
		return true
	})
	receipt.TotalAmount = total

	return receipt, nil
}

func firstResult(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func firstString(doc gjson.Result, paths ...string) string {
	return strings.TrimSpace(firstResult(doc, paths...).String())
}

func coerceQuantity(r gjson.Result) int {
	var q float64
	switch r.Type {
	case gjson.Number:
		q = r.Float()
	case gjson.String:
		d, err := decimal.NewFromString(strings.TrimSpace(r.Str))
		if err != nil {
			return 1
		}
		q = d.InexactFloat64()
	default:
		return 1
	}
	if math.IsNaN(q) || q < 1 {
		return 1
	}
	if q > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(q))
}

func coercePrice(r gjson.Result) decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch r.Type {
	case gjson.Number:
		d, err = decimal.NewFromString(r.Raw)
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		s = strings.TrimLeft(s, "$€£¥ ")
		normalised, ok := normaliseAmount(s)
		if !ok {
			return decimal.Zero
		}
		d, err = decimal.NewFromString(normalised)
	default:
		return decimal.Zero
	}
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

// normaliseAmount rewrites a printed amount with "." as the decimal separator.
// When both separators appear the last one is the decimal mark. A lone comma
// followed by one or two digits is a decimal comma; commas before groups of
// three digits are thousands separators. Anything else is rejected.
func normaliseAmount(s string) (string, bool) {
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma < 0:
		return s, true
	case dot >= 0 && dot > comma:
		return strings.ReplaceAll(s, ",", ""), true
	case dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1), strings.Count(s, ",") == 1
	}

	groups := strings.Split(s, ",")
	if len(groups) == 2 && len(groups[1]) >= 1 && len(groups[1]) <= 2 {
		return groups[0] + "." + groups[1], true
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
