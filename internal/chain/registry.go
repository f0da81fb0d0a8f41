// Package chain mediates all reads and writes against the prediction-market
// contract through go-ethereum. It owns the supported-chain registry, the
// fixed contract ABI, and the classification of chain errors into the short
// user-facing taxonomy.
package chain

// Endpoint describes one supported chain: its RPC URL, the deployed contract
// address, and display metadata.
type Endpoint struct {
	ChainID         int64
	Name            string
	CurrencySymbol  string
	RPCURL          string
	ContractAddress string
}

// Registry is the table of supported chains keyed by chain id.
type Registry struct {
	byID      map[int64]Endpoint
	defaultID int64
}

// MonadTestnetID is the default chain for fresh sessions.
const MonadTestnetID int64 = 10143

// EthereumMainnetID is the id of Ethereum mainnet.
const EthereumMainnetID int64 = 1

// NewRegistry builds a Registry from the given endpoints. The first endpoint
// becomes the default.
func NewRegistry(endpoints []Endpoint) *Registry {
	r := &Registry{byID: make(map[int64]Endpoint, len(endpoints))}
	for i, ep := range endpoints {
		r.byID[ep.ChainID] = ep
		if i == 0 {
			r.defaultID = ep.ChainID
		}
	}
	return r
}

// DefaultRegistry returns the built-in chain table: Monad testnet (default)
// and Ethereum mainnet. Contract addresses come from configuration.
func DefaultRegistry(monadContract, ethereumContract string) *Registry {
	return NewRegistry([]Endpoint{
		{
			ChainID:         MonadTestnetID,
			Name:            "Monad Testnet",
			CurrencySymbol:  "MON",
			RPCURL:          "https://testnet.monad.xyz",
			ContractAddress: monadContract,
		},
		{
			ChainID:         EthereumMainnetID,
			Name:            "Ethereum",
			CurrencySymbol:  "ETH",
			RPCURL:          "https://eth.llamarpc.com",
			ContractAddress: ethereumContract,
		},
	})
}

// Endpoint returns the endpoint for a chain id.
func (r *Registry) Endpoint(chainID int64) (Endpoint, bool) {
	ep, ok := r.byID[chainID]
	return ep, ok
}

// Supported reports whether the chain id is in the table.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.byID[chainID]
	return ok
}

// DefaultChainID returns the registry's default chain.
func (r *Registry) DefaultChainID() int64 {
	return r.defaultID
}

// Name returns the human-readable chain name, or "Unknown Chain".
func (r *Registry) Name(chainID int64) string {
	if ep, ok := r.byID[chainID]; ok {
		return ep.Name
	}
	return "Unknown Chain"
}

// CurrencySymbol returns the native-currency symbol, or "ETH" as a fallback.
func (r *Registry) CurrencySymbol(chainID int64) string {
	if ep, ok := r.byID[chainID]; ok {
		return ep.CurrencySymbol
	}
	return "ETH"
}
