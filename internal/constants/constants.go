package constants

import "time"

// Networks
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Validator app ids per network and contract version.
var ValidatorAppIDs = map[string]map[string]uint64{
	NetworkMainnet: {
		"v1": 552635992,
		"v2": 1002541853,
	},
	NetworkTestnet: {
		"v1": 62368684,
		"v2": 148607000,
	},
}

// Public algod endpoints used when none is configured.
var AlgodURLs = map[string]string{
	NetworkMainnet: "https://mainnet-api.algonode.cloud",
	NetworkTestnet: "https://testnet-api.algonode.cloud",
}

// Redis Pub/Sub channels
const (
	PubSubChannelExecutions      = "executions:all"
	PubSubChannelPoolPrefix      = "executions:pool:"
	PubSubChannelOperationPrefix = "executions:op:"
)

// Redis keys
const (
	RedisKeyAssetPrefix = "amm:asset:"
)

// ClickHouse
const (
	ClickHouseExecutionsTable = "executions"
)

// Defaults
const (
	DefaultPollInterval  = 2 * time.Second
	DefaultSlippageBps   = 50
	MaxSlippageBps       = 10_000
	DefaultMaxImpactBps  = 1_000
	ErrorFallbackMessage = "An unknown error occurred."
)

// ValidatorAppID returns the app id for a network and version, or zero.
func ValidatorAppID(network, version string) uint64 {
	return ValidatorAppIDs[network][version]
}
