package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// OpportunityType is the tagged-variant discriminator for Opportunity.
type OpportunityType string

const (
	CrossVenue              OpportunityType = "crossVenue"
	Triangular              OpportunityType = "triangular"
	MultiHop                OpportunityType = "multiHop"
	Statistical             OpportunityType = "statistical"
	StableCrossVenue        OpportunityType = "stableCrossVenue"
	StableTriangular        OpportunityType = "stableTriangular"
	Differential            OpportunityType = "differential"
	LiquidationBackrun      OpportunityType = "liquidationBackrun"
	LiquidationBuyCollateral OpportunityType = "liquidationBuyCollateral"
	AggregatorRoute          OpportunityType = "aggregatorRoute"
	NewPair                  OpportunityType = "newPair"
)

// OpportunitySource mirrors the JSON envelope's "source" field.
type OpportunitySource string

const (
	SourceEvent        OpportunitySource = "event"
	SourceBlock        OpportunitySource = "block"
	SourceDifferential OpportunitySource = "differential"
	SourceStatistical  OpportunitySource = "statistical"
	SourceLiquidation  OpportunitySource = "liquidation"
)

// Leg references a pool and swap direction used by one hop of an opportunity.
type Leg struct {
	Venue     string
	Pool      common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  string // decimal string, arbitrary precision
	AmountOut string // decimal string, arbitrary precision
	Fee       float64
}

// Opportunity is the common envelope over every detector's tagged variant.
type Opportunity struct {
	ID                    string
	ChainID               uint64
	Type                  OpportunityType
	DetectedAt            time.Time
	BlockNumber           uint64
	Legs                  []Leg
	EstimatedGrossProfit  float64
	EstimatedGasCostUSD   float64
	EstimatedNetProfit    float64
	MinLiquidityUSD       float64
	Source                OpportunitySource
	Confidence            float64

	// Pair is the primary pair the opportunity concerns; used by the
	// Adaptive Prioritizer's feedback loop and not part of the wire envelope.
	Pair PairKey
}

// NewOpportunityID mints a fresh opportunity identifier.
func NewOpportunityID() string {
	return uuid.NewString()
}

// Finalize stamps EstimatedNetProfit = EstimatedGrossProfit - EstimatedGasCostUSD
// and assigns an ID/DetectedAt if not already set, enforcing invariant #3.
func (o *Opportunity) Finalize(now time.Time) {
	if o.ID == "" {
		o.ID = NewOpportunityID()
	}
	if o.DetectedAt.IsZero() {
		o.DetectedAt = now
	}
	o.EstimatedNetProfit = o.EstimatedGrossProfit - o.EstimatedGasCostUSD
}
