package store

import "github.com/dmittakarin8/solflow-pipeline/internal/domain"

// TokenAggregateRecord is the gorm model for token_aggregates. Grounded on
// blackholedex's AssetSnapshotRecord shape (plain struct + TableName()),
// adapted from an append-only snapshot table to an upsert-by-mint table.
type TokenAggregateRecord struct {
	Mint string `gorm:"primaryKey;column:mint"`

	LastTradeTimestamp int64 `gorm:"column:last_trade_timestamp"`

	NetFlow60sSol  float64 `gorm:"column:net_flow_60s_sol"`
	NetFlow300sSol float64 `gorm:"column:net_flow_300s_sol"`
	NetFlow900sSol float64 `gorm:"column:net_flow_900s_sol"`

	BuyCount60s   int `gorm:"column:buy_count_60s"`
	SellCount60s  int `gorm:"column:sell_count_60s"`
	BuyCount300s  int `gorm:"column:buy_count_300s"`
	SellCount300s int `gorm:"column:sell_count_300s"`
	BuyCount900s  int `gorm:"column:buy_count_900s"`
	SellCount900s int `gorm:"column:sell_count_900s"`

	UniqueWallets300s int `gorm:"column:unique_wallets_300s"`
	BotTrades300s     int `gorm:"column:bot_trades_300s"`
	BotWallets300s    int `gorm:"column:bot_wallets_300s"`

	AvgTradeSize300sSol float64 `gorm:"column:avg_trade_size_300s_sol"`
	Volume300sSol       float64 `gorm:"column:volume_300s_sol"`

	PriceUSD     *float64 `gorm:"column:price_usd"`
	PriceSol     *float64 `gorm:"column:price_sol"`
	MarketCapUSD *float64 `gorm:"column:market_cap_usd"`

	SourceProgram string `gorm:"column:source_program"`
	CreatedAt     int64  `gorm:"column:created_at"`
	UpdatedAt     int64  `gorm:"column:updated_at"`
}

func (TokenAggregateRecord) TableName() string { return "token_aggregates" }

// TokenSignalRecord is the gorm model for token_signals, an append-only log
// of edge-triggered signal firings.
type TokenSignalRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Mint          string `gorm:"column:mint;index"`
	SignalType    string `gorm:"column:signal_type;index"`
	WindowSeconds int    `gorm:"column:window_seconds"`
	Severity      int    `gorm:"column:severity"`
	Score         float64 `gorm:"column:score"`
	DetailsJSON   string `gorm:"column:details_json"`
	CreatedAt     int64  `gorm:"column:created_at;index"`
}

func (TokenSignalRecord) TableName() string { return "token_signals" }

// MintBlocklistRecord is the gorm model for mint_blocklist, consulted by
// the BlocklistGate before any write to token_signals. expires_at is
// nullable: a row with no expiry blocks its mint permanently; scenario S6's
// temporary block sets it to a future unix timestamp.
type MintBlocklistRecord struct {
	Mint      string `gorm:"primaryKey;column:mint"`
	Reason    string `gorm:"column:reason"`
	BlockedBy string `gorm:"column:blocked_by"`
	CreatedAt int64  `gorm:"column:created_at"`
	ExpiresAt *int64 `gorm:"column:expires_at"`
}

func (MintBlocklistRecord) TableName() string { return "mint_blocklist" }

// TokenMetadataRecord is the gorm model for token_metadata, populated by
// the optional enrichment client.
type TokenMetadataRecord struct {
	Mint        string  `gorm:"primaryKey;column:mint"`
	Symbol      string  `gorm:"column:symbol"`
	Name        string  `gorm:"column:name"`
	Decimals    uint8   `gorm:"column:decimals"`
	PriceUSD    *float64 `gorm:"column:price_usd"`
	LiquidityUSD *float64 `gorm:"column:liquidity_usd"`
	UpdatedAt   int64   `gorm:"column:updated_at"`
}

func (TokenMetadataRecord) TableName() string { return "token_metadata" }

// TokenSignalSummaryRecord is the gorm model for token_signal_summary, the
// scorer's output table.
type TokenSignalSummaryRecord struct {
	Mint              string  `gorm:"primaryKey;column:mint"`
	PersistenceScore  float64 `gorm:"column:persistence_score"`
	PatternTag        string  `gorm:"column:pattern_tag"`
	ConfidenceTier    string  `gorm:"column:confidence_tier"`
	SignalCount24h    int     `gorm:"column:signal_count_24h"`
	SignalCount72h    int     `gorm:"column:signal_count_72h"`
	UpdatedAt         int64   `gorm:"column:updated_at"`
}

func (TokenSignalSummaryRecord) TableName() string { return "token_signal_summary" }

func fromAggregate(a domain.AggregatedTokenState) TokenAggregateRecord {
	return TokenAggregateRecord{
		Mint:                a.Mint,
		LastTradeTimestamp:  a.LastTradeTimestamp,
		NetFlow60sSol:       a.NetFlow60sSol,
		NetFlow300sSol:      a.NetFlow300sSol,
		NetFlow900sSol:      a.NetFlow900sSol,
		BuyCount60s:         a.BuyCount60s,
		SellCount60s:        a.SellCount60s,
		BuyCount300s:        a.BuyCount300s,
		SellCount300s:       a.SellCount300s,
		BuyCount900s:        a.BuyCount900s,
		SellCount900s:       a.SellCount900s,
		UniqueWallets300s:   a.UniqueWallets300s,
		BotTrades300s:       a.BotTrades300s,
		BotWallets300s:      a.BotWallets300s,
		AvgTradeSize300sSol: a.AvgTradeSize300sSol,
		Volume300sSol:       a.Volume300sSol,
		PriceUSD:            a.PriceUSD,
		PriceSol:            a.PriceSol,
		MarketCapUSD:        a.MarketCapUSD,
		SourceProgram:       a.SourceProgram,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func fromSignal(s domain.TokenSignal) TokenSignalRecord {
	return TokenSignalRecord{
		Mint:          s.Mint,
		SignalType:    s.SignalType.String(),
		WindowSeconds: s.WindowSeconds,
		Severity:      s.Severity,
		Score:         s.Score,
		DetailsJSON:   s.DetailsJSON,
		CreatedAt:     s.CreatedAt,
	}
}
