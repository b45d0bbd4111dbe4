package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/charlesng35/expensely/internal/models"
	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func mustDataURI(t *testing.T) string {
	t.Helper()
	uri, err := EncodeDataURI(pngImage)
	require.NoError(t, err)
	return uri
}

func TestEncodeAndParseDataURI(t *testing.T) {
	uri := mustDataURI(t)
	require.Contains(t, uri, "data:image/png;base64,")

	mime, data, err := ParseDataURI(uri)
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)
	require.Equal(t, pngImage, data)
}

func TestDataURIRejectsNonImages(t *testing.T) {
	_, err := EncodeDataURI([]byte("%PDF-1.7 not an image"))
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = EncodeDataURI(nil)
	require.ErrorIs(t, err, ErrEmptyImage)

	_, _, err = ParseDataURI("https://example.com/receipt.png")
	require.ErrorIs(t, err, ErrInvalidDataURI)

	_, _, err = ParseDataURI("data:image/png,rawpayload")
	require.ErrorIs(t, err, ErrInvalidDataURI)

	mismatched := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(pngImage)
	_, _, err = ParseDataURI(mismatched)
	require.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestCoerceNormalisesFields(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	raw := []byte(`{
		"vendor_name": " Corner Shop ",
		"category": "grocery",
		"payment_method": "CARD",
		"expense_date": "not a date",
		"items": [
			{"name": "Bread", "net_price": 2.10},
			{"name": "Milk", "quantity": 2.7, "net_price": "1.15"},
			{"name": "Bag", "quantity": -3, "net_price": "free"},
			{"name": "Kaffee", "net_price": "12,50"},
			{"name": "Tent", "net_price": "€1,250.00"},
			{"name": "Bike", "net_price": "1.234,56"},
			{"name": "Smudge", "net_price": "1,2,3"}
		]
	}`)

	receipt, err := Coerce(raw, now)
	require.NoError(t, err)
	require.Equal(t, "Corner Shop", receipt.VendorName)
	require.Equal(t, models.CategoryOther, receipt.Category)
	require.Equal(t, models.PaymentMethodCard, receipt.PaymentMethod)
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), receipt.ExpenseDate)

	require.Len(t, receipt.Items, 7)
	require.Equal(t, 1, receipt.Items[0].Quantity)
	require.Equal(t, 2, receipt.Items[1].Quantity)
	require.Equal(t, 1, receipt.Items[2].Quantity)
	require.True(t, receipt.Items[2].NetPrice.IsZero())
	require.True(t, decimal.RequireFromString("12.50").Equal(receipt.Items[3].NetPrice), receipt.Items[3].NetPrice.String())
	require.True(t, decimal.RequireFromString("1250").Equal(receipt.Items[4].NetPrice), receipt.Items[4].NetPrice.String())
	require.True(t, decimal.RequireFromString("1234.56").Equal(receipt.Items[5].NetPrice), receipt.Items[5].NetPrice.String())
	require.True(t, receipt.Items[6].NetPrice.IsZero())
	require.True(t, decimal.RequireFromString("2500.31").Equal(receipt.TotalAmount), receipt.TotalAmount.String())
}

func TestCoerceKeepsValidValues(t *testing.T) {
	raw := []byte(`{"vendor":"Air","category":"travel","payment_method":"online","date":"2025-12-01","items":[]}`)
	receipt, err := Coerce(raw, time.Now())
	require.NoError(t, err)
	require.Equal(t, "Air", receipt.VendorName)
	require.Equal(t, models.CategoryTravel, receipt.Category)
	require.Equal(t, models.PaymentMethodOnline, receipt.PaymentMethod)
	require.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), receipt.ExpenseDate)
	require.Empty(t, receipt.Items)
	require.True(t, receipt.TotalAmount.IsZero())
}

func TestCoerceRejectsNonObjects(t *testing.T) {
	_, err := Coerce([]byte(`not json`), time.Now())
	require.ErrorIs(t, err, ErrUnusablePayload)
	_, err = Coerce([]byte(`[1,2]`), time.Now())
	require.ErrorIs(t, err, ErrUnusablePayload)
}

func TestOpenAIModelSendsDataURI(t *testing.T) {
	uri := mustDataURI(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "vision-test", gjson.GetBytes(body, "model").String())
		require.Equal(t, uri, gjson.GetBytes(body, "messages.1.content.1.image_url.url").String())

		content := "```json\n{\"vendor_name\":\"Cafe\"}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	defer srv.Close()

	model, err := NewOpenAIModel(ModelConfig{Endpoint: srv.URL, APIKey: "secret", Model: "vision-test"})
	require.NoError(t, err)

	raw, err := model.Extract(context.Background(), uri)
	require.NoError(t, err)
	require.JSONEq(t, `{"vendor_name":"Cafe"}`, string(raw))
}

func TestOpenAIModelSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	model, err := NewOpenAIModel(ModelConfig{Endpoint: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = model.Extract(context.Background(), mustDataURI(t))
	require.ErrorContains(t, err, "quota exceeded")
}

type stubModel struct {
	calls int
	reply []byte
	err   error
}

func (s *stubModel) Extract(context.Context, string) ([]byte, error) {
	s.calls++
	return s.reply, s.err
}

func TestExtractorWrapsModelFailureWithoutRetry(t *testing.T) {
	model := &stubModel{err: errors.New("upstream timeout")}
	extractor, err := NewExtractor(model)
	require.NoError(t, err)

	receipt, err := extractor.Extract(context.Background(), "u1", mustDataURI(t))
	require.Nil(t, receipt)
	require.ErrorIs(t, err, apperrors.ErrExtractionFailed)
	require.Equal(t, 1, model.calls)

	model.err = nil
	model.reply = []byte(`"just text"`)
	_, err = extractor.Extract(context.Background(), "u1", mustDataURI(t))
	require.ErrorIs(t, err, apperrors.ErrExtractionFailed)
}

func TestExtractorValidatesImageBeforeCallingModel(t *testing.T) {
	model := &stubModel{}
	extractor, err := NewExtractor(model)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), "u1", "data:text/plain;base64,aGVsbG8=")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	require.Zero(t, model.calls)
}

func TestExtractorRateLimitsPerUser(t *testing.T) {
	model := &stubModel{reply: []byte(`{"category":"food"}`)}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	extractor, err := NewExtractor(model, WithLimiter(NewLimiter(1, 1)), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	receipt, err := extractor.Extract(context.Background(), "u1", mustDataURI(t))
	require.NoError(t, err)
	require.Equal(t, models.CategoryFood, receipt.Category)
	require.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), receipt.ExpenseDate)

	_, err = extractor.Extract(context.Background(), "u1", mustDataURI(t))
	require.ErrorIs(t, err, apperrors.ErrRateLimit)

	_, err = extractor.Extract(context.Background(), "u2", mustDataURI(t))
	require.NoError(t, err)
}

func TestLimiterPrune(t *testing.T) {
	l := NewLimiter(10, 1)
	current := time.Now()
	l.now = func() time.Time { return current }
	require.True(t, l.Allow("a"))

	current = current.Add(time.Hour)
	require.Equal(t, 1, l.Prune())
	require.True(t, l.Allow("a"))
}
