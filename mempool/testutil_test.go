package mempool

import (
	"obsidianmempool/chaincfg"
	"obsidianmempool/config"
)

func testParams() chaincfg.Params {
	return chaincfg.MainNetParams
}

func testConfig() config.MempoolConfig {
	return config.MempoolConfig{
		MaxSize:          300 * 1024 * 1024,
		MaxOrphans:       5,
		MaxAncestors:     25,
		MinRelayTxFee:    1,
		FreeTxRelayLimit: 15,
		ExpiryTime:       0,
		RequireStandard:  true,
		ReplaceByFee:     false,
		RejectAbsurdFees: true,
		RelayPriority:    true,
		IndexAddress:     false,
	}
}
