package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/go-resty/resty/v2"
	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	TierPrimary   = "primary"
	TierSuburb    = "suburb"
	TierElsewhere = "elsewhere"
)

// TierTable maps destination names onto delivery tiers.
type TierTable struct {
	Primary         []string
	Suburbs         []string
	PrimaryCharge   decimal.Decimal
	SuburbCharge    decimal.Decimal
	ElsewhereCharge decimal.Decimal
}

// DefaultTierTable is Dhaka city at 60, its satellite towns at 90 and the
// rest of the country at 120.
func DefaultTierTable() TierTable {
	return TierTable{
		Primary: []string{"dhaka"},
		Suburbs: []string{
			"savar", "ashulia", "keraniganj", "gazipur", "tongi", "narayanganj",
			"siddhirganj", "fatullah", "demra", "dohar", "nawabganj", "dhamrai",
			"kaliakair", "rupganj", "sonargaon",
		},
		PrimaryCharge:   decimal.NewFromInt(60),
		SuburbCharge:    decimal.NewFromInt(90),
		ElsewhereCharge: decimal.NewFromInt(120),
	}
}

// Highest is the fail-safe charge used when a destination cannot be priced.
func (t TierTable) Highest() decimal.Decimal {
	return decimal.Max(t.PrimaryCharge, t.SuburbCharge, t.ElsewhereCharge)
}

// matches reports whether name contains key as a whole slug token run, so
// "Dhaka North" matches "dhaka" but "Dhakashwari" does not.
func matches(name, key string) bool {
	n, k := slug.Make(name), slug.Make(key)
	if n == "" || k == "" {
		return false
	}
	return n == k ||
		strings.HasPrefix(n, k+"-") ||
		strings.HasSuffix(n, "-"+k) ||
		strings.Contains(n, "-"+k+"-")
}

func matchesAny(name string, keys []string) bool {
	for _, k := range keys {
		if matches(name, k) {
			return true
		}
	}
	return false
}

// Classify returns the tier and base charge for dest. Suburbs are checked
// first on every name; the primary city only on the city name, since a
// division called Dhaka spans far more than the city.
func (t TierTable) Classify(dest models.Destination) (string, decimal.Decimal) {
	for _, name := range dest.Names() {
		if matchesAny(name, t.Suburbs) {
			return TierSuburb, t.SuburbCharge
		}
	}
	if matchesAny(dest.City, t.Primary) || (dest.City == "" && matchesAny(dest.Zone, t.Primary)) {
		return TierPrimary, t.PrimaryCharge
	}
	return TierElsewhere, t.Highest()
}

// RateSource prices a destination through an external service.
type RateSource interface {
	Rate(ctx context.Context, dest models.Destination) (decimal.Decimal, error)
}

// DeliveryQuote is the resolved delivery charge for one payment option.
type DeliveryQuote struct {
	Tier              string          `json:"tier"`
	Base              decimal.Decimal `json:"base"`
	Charge            decimal.Decimal `json:"charge"`
	Waived            bool            `json:"waived"`
	PayableOnDelivery bool            `json:"payableOnDelivery"`
	Degraded          bool            `json:"degraded"`
}

type DeliveryChargeResolver struct {
	tiers      TierTable
	source     RateSource
	calculator Calculator
}

// NewDeliveryChargeResolver builds a resolver. source may be nil, in which
// case the tier table is authoritative.
func NewDeliveryChargeResolver(tiers TierTable, source RateSource, calculator Calculator) *DeliveryChargeResolver {
	return &DeliveryChargeResolver{tiers: tiers, source: source, calculator: calculator}
}

func (r *DeliveryChargeResolver) Calculator() Calculator {
	return r.calculator
}

// BaseCharge is the destination charge before payment-option overrides. It
// never fails: a broken rate source yields the highest tier, flagged degraded.
func (r *DeliveryChargeResolver) BaseCharge(ctx context.Context, dest models.Destination) DeliveryQuote {
	tier, charge := r.tiers.Classify(dest)
	if r.source == nil {
		return DeliveryQuote{Tier: tier, Base: charge, Charge: charge}
	}

	rate, err := r.source.Rate(ctx, dest)
	if err == nil && rate.IsNegative() {
		err = fmt.Errorf("negative delivery rate %s", rate)
	}
	if err != nil {
		util.LogWarning("delivery rate lookup failed, charging highest tier",
			zap.String("city", dest.City), zap.String("zone", dest.Zone), zap.Error(err))
		highest := r.tiers.Highest()
		return DeliveryQuote{Tier: TierElsewhere, Base: highest, Charge: highest, Degraded: true}
	}
	return DeliveryQuote{Tier: tier, Base: rate, Charge: rate}
}

// Resolve applies the payment-option rules to the destination charge.
func (r *DeliveryChargeResolver) Resolve(ctx context.Context, dest models.Destination, discountedSubtotal decimal.Decimal, option models.PaymentOption) DeliveryQuote {
	q := r.BaseCharge(ctx, dest)
	if r.calculator.Waives(option, discountedSubtotal) {
		q.Charge = decimal.Zero
		q.Waived = true
	}
	q.PayableOnDelivery = option == models.PaymentOptionCOD
	return q
}

type rateResponse struct {
	Data struct {
		Charge decimal.Decimal `json:"charge"`
	} `json:"data"`
}

// HTTPRateSource asks the delivery service for a rate, retrying transient
// failures.
type HTTPRateSource struct {
	client *resty.Client
}

func NewHTTPRateSource(baseURL string, timeout time.Duration) *HTTPRateSource {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == 429 || resp.StatusCode() >= 500
		})
	return &HTTPRateSource{client: client}
}

func (s *HTTPRateSource) Rate(ctx context.Context, dest models.Destination) (decimal.Decimal, error) {
	var out rateResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"city": dest.City,
			"zone": dest.Zone,
			"area": dest.Area,
		}).
		SetResult(&out).
		Get("/rates")
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "delivery rate request")
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("delivery rate service returned %d", resp.StatusCode())
	}
	return out.Data.Charge, nil
}

// BreakerRateSource stops calling a failing rate source until it recovers.
type BreakerRateSource struct {
	next    RateSource
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerRateSource(next RateSource, failures uint32, openFor time.Duration) *BreakerRateSource {
	settings := gobreaker.Settings{
		Name:        "delivery-rates",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			util.LogWarning("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerRateSource{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (s *BreakerRateSource) Rate(ctx context.Context, dest models.Destination) (decimal.Decimal, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.next.Rate(ctx, dest)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return out.(decimal.Decimal), nil
}

func (s *BreakerRateSource) State() gobreaker.State {
	return s.breaker.State()
}
