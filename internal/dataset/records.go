package dataset

import (
	"strings"
	"unicode"
)

// PlayStoreApp is one cleaned Google Play row.
type PlayStoreApp struct {
	Name     string
	Category string
	Rating   float64
	Reviews  int64
	SizeMB   *float64
	Installs *int64
	Price    float64
}

// AppStoreApp is one normalized App Store row from the catalog API.
type AppStoreApp struct {
	Name        string
	Category    string
	Rating      float64
	RatingCount int64
	Price       float64
}

// MergedApp is one row of the unified cross-platform dataset.
// The App Store side is nil-valued when the app was not matched;
// the join key is the normalized app name.
type MergedApp struct {
	Name           string
	Category       string
	GoogleRating   float64
	GoogleReviews  int64
	SizeMB         *float64
	Installs       *int64
	GooglePrice    float64
	AppleRating    *float64
	AppleRatings   *int64
	ApplePrice     *float64
	OnBothStores   bool
}

// CampaignRecord is one cleaned D2C marketing campaign row with
// derived funnel metrics.
type CampaignRecord struct {
	CampaignID     string
	Channel        string
	SpendUSD       float64
	Impressions    int64
	Clicks         int64
	Installs       int64
	Signups        int64
	FirstPurchase  int64
	RepeatPurchase int64
	RevenueUSD     float64
	ConversionRate float64
	CAC            float64
	ROAS           float64
	CTR            float64
	RetentionRate  float64
}

// NormalizeName produces the merge join key: lowercase with internal
// whitespace collapsed, so "My App " and "my app" compare equal.
func NormalizeName(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}
