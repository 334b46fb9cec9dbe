package model

const (
	KindRootPool  = "root_pool"
	KindChildPool = "child_pool"
)

// PoolRecord captures a root or child pool registration for off-chain
// indexing.
type PoolRecord struct {
	Kind          string `json:"kind"`
	PoolID        string `json:"pool_id"`
	Currency0     string `json:"currency0"`
	Currency1     string `json:"currency1"`
	Fee           uint32 `json:"fee"`
	TickSpacing   int32  `json:"tick_spacing"`
	Hooks         string `json:"hooks"`
	ParentPoolID  string `json:"parent_pool_id,omitempty"`
	SqrtPriceX96  string `json:"sqrt_price_x96,omitempty"`
	TotalFeeBps   uint64 `json:"total_fee_bps"`
	ChildShareBps uint64 `json:"child_share_bps"`
	RegisteredAt  string `json:"registered_at"`
}

// DerivativeRecord captures a completed derivative creation.
type DerivativeRecord struct {
	Token        string `json:"token"`
	Collection   string `json:"collection"`
	ParentToken  string `json:"parent_token"`
	PoolID       string `json:"pool_id"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Refund0      string `json:"refund0,omitempty"`
	Refund1      string `json:"refund1,omitempty"`
	CreatedAt    string `json:"created_at"`
}
