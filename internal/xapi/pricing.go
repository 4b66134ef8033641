package xapi

// Pricing converts API usage into dollar cost. The upstream meters per
// returned tweet with a minimum charge per request, so the pre-call estimate
// assumes a full page and the actual cost is reconciled from the item count
// that really came back.
type Pricing struct {
	BasePerCall float64 // minimum charge per request
	PerTweet    float64
	PerTrend    float64
}

// DefaultPricing mirrors the upstream's published metering.
func DefaultPricing() Pricing {
	return Pricing{
		BasePerCall: 0.00015,
		PerTweet:    0.00015,
		PerTrend:    0.00005,
	}
}

// EstimateTweets is the admission estimate for a call expected to return up
// to n tweets.
func (p Pricing) EstimateTweets(n int) float64 {
	cost := p.BasePerCall + float64(n)*p.PerTweet
	return cost
}

// EstimateTrends is the admission estimate for a trends call.
func (p Pricing) EstimateTrends(n int) float64 {
	return p.BasePerCall + float64(n)*p.PerTrend
}

// actualTweets is the incurred cost for a call that returned n tweets.
func (p Pricing) actualTweets(n int) float64 {
	cost := float64(n) * p.PerTweet
	if cost < p.BasePerCall {
		cost = p.BasePerCall
	}
	return cost
}

// actualTrends is the incurred cost for a call that returned n trends.
func (p Pricing) actualTrends(n int) float64 {
	cost := float64(n) * p.PerTrend
	if cost < p.BasePerCall {
		cost = p.BasePerCall
	}
	return cost
}
