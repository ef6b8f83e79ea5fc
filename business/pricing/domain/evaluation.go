package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Evaluation is the outcome of comparing two venue prices for one route.
// Buy happens on the cheaper venue, sell-back on the other.
type Evaluation struct {
	BuyVenueID  string
	SellVenueID string
	BuyPrice    decimal.Decimal
	SellPrice   decimal.Decimal

	AmountIn        decimal.Decimal // base token
	EstimatedProfit decimal.Decimal // base token
	ProfitPct       decimal.Decimal // percentage
}

// EvaluateRoundTrip computes the round-trip profit of buying amountIn on the
// cheaper venue and selling on the other, with each venue's fee applied to
// its leg:
//
//	out = in * sellPrice/buyPrice * (1-feeBuy) * (1-feeSell)
//
// Fees are fractions (0.003 = 30 bps). Returns ok=false when either price is
// non-positive, which means one venue had no usable liquidity.
func EvaluateRoundTrip(venueAID, venueBID string, priceA, priceB, feeA, feeB, amountIn decimal.Decimal) (Evaluation, bool) {
	if !priceA.IsPositive() || !priceB.IsPositive() || !amountIn.IsPositive() {
		return Evaluation{}, false
	}

	ev := Evaluation{AmountIn: amountIn}
	var feeBuy, feeSell decimal.Decimal
	if priceA.LessThanOrEqual(priceB) {
		ev.BuyVenueID, ev.SellVenueID = venueAID, venueBID
		ev.BuyPrice, ev.SellPrice = priceA, priceB
		feeBuy, feeSell = feeA, feeB
	} else {
		ev.BuyVenueID, ev.SellVenueID = venueBID, venueAID
		ev.BuyPrice, ev.SellPrice = priceB, priceA
		feeBuy, feeSell = feeB, feeA
	}

	one := decimal.NewFromInt(1)
	out := amountIn.
		Mul(ev.SellPrice).Div(ev.BuyPrice).
		Mul(one.Sub(feeBuy)).
		Mul(one.Sub(feeSell))

	ev.EstimatedProfit = out.Sub(amountIn)
	ev.ProfitPct = ev.EstimatedProfit.Div(amountIn).Mul(hundred)
	return ev, true
}
