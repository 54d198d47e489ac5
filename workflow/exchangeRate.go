package workflow

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateFetcher hides the upstream rate source so tests and offline runs
// can substitute fixed rates.
type RateFetcher interface {
	FetchRate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// rateMarkup is applied on top of the official rate when converting
// quoted EUR amounts into invoiced RON.
var rateMarkup = decimal.NewFromFloat(1.01)

const bnrRatesURL = "https://www.bnr.ro/nbrfxrates.xml"

// BNRFetcher pulls the daily reference rates published by the National
// Bank of Romania.
type BNRFetcher struct {
	Client *http.Client
	URL    string
}

func NewBNRFetcher() *BNRFetcher {
	return &BNRFetcher{
		Client: &http.Client{Timeout: 15 * time.Second},
		URL:    bnrRatesURL,
	}
}

type bnrDocument struct {
	Body struct {
		Cube struct {
			Rates []struct {
				Currency   string `xml:"currency,attr"`
				Multiplier string `xml:"multiplier,attr"`
				Value      string `xml:",chardata"`
			} `xml:"Rate"`
		} `xml:"Cube"`
	} `xml:"Body"`
}

func (f *BNRFetcher) FetchRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return decimal.Zero, err
	}
	response, err := f.Client.Do(request)
	if err != nil {
		return decimal.Zero, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned %d", response.StatusCode)
	}
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return decimal.Zero, err
	}

	var document bnrDocument
	if err := xml.Unmarshal(raw, &document); err != nil {
		return decimal.Zero, err
	}
	for _, rate := range document.Body.Cube.Rates {
		if rate.Currency != currency {
			continue
		}
		value, err := decimal.NewFromString(rate.Value)
		if err != nil {
			return decimal.Zero, err
		}
		if rate.Multiplier != "" {
			multiplier, err := decimal.NewFromString(rate.Multiplier)
			if err == nil && multiplier.IsPositive() {
				value = value.Div(multiplier)
			}
		}
		return value, nil
	}
	return decimal.Zero, fmt.Errorf("currency %s not published", currency)
}

// GetTodayRate returns the billing rate for a currency: the official
// rate with the markup applied, cached per day so the upstream source
// is hit at most once.
func GetTodayRate(ctx context.Context, db *gorm.DB, fetcher RateFetcher, currency string) (decimal.Decimal, error) {
	today := time.Now().UTC()
	cached, err := models.CachedRate(db, currency, today)
	if err != nil {
		return decimal.Zero, err
	}
	if cached != nil {
		return cached.Rate, nil
	}

	official, err := fetcher.FetchRate(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	rate := official.Mul(rateMarkup).Round(6)
	if _, err := models.StoreRate(db, currency, today, rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}
