package evm

// ArbitrageABI is the ABI surface of the deployed execution contract used by
// the coordinator and the settlement tracker.
const ArbitrageABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "address", "name": "venueA", "type": "address"},
			{"internalType": "address", "name": "venueB", "type": "address"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "minProfitExpected", "type": "uint256"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "executeArbitrage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "address", "name": "venueA", "type": "address"},
			{"internalType": "address", "name": "venueB", "type": "address"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "minProfitExpected", "type": "uint256"}
		],
		"name": "simulateArbitrage",
		"outputs": [
			{"internalType": "uint256", "name": "profit", "type": "uint256"},
			{"internalType": "bool", "name": "profitable", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getConfig",
		"outputs": [
			{"internalType": "bool", "name": "paused", "type": "bool"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"},
			{"internalType": "uint256", "name": "feeBps", "type": "uint256"},
			{"internalType": "address", "name": "feeRecipient", "type": "address"},
			{"internalType": "uint256", "name": "gasPriceCeiling", "type": "uint256"},
			{"internalType": "uint256", "name": "maxSlippageBps", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "executor", "type": "address"}
		],
		"name": "authorizedExecutors",
		"outputs": [
			{"internalType": "bool", "name": "", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "token", "type": "address"}
		],
		"name": "blacklistedTokens",
		"outputs": [
			{"internalType": "bool", "name": "", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "pause",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "unpause",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "executor", "type": "address"},
			{"internalType": "bool", "name": "authorized", "type": "bool"}
		],
		"name": "setAuthorizedExecutor",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "bool", "name": "blacklisted", "type": "bool"}
		],
		"name": "setTokenBlacklist",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"},
			{"internalType": "uint256", "name": "feeBps", "type": "uint256"},
			{"internalType": "uint256", "name": "gasPriceCeiling", "type": "uint256"},
			{"internalType": "uint256", "name": "maxSlippageBps", "type": "uint256"}
		],
		"name": "setRiskParams",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "recipient", "type": "address"}
		],
		"name": "setFeeRecipient",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "token", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "withdrawProfit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "token", "type": "address"}
		],
		"name": "emergencyWithdraw",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "tokenA", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "tokenB", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "venueA", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "venueB", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "profit", "type": "uint256"}
		],
		"name": "ArbitrageExecuted",
		"type": "event"
	}
]`

// ERC20ABI holds the minimal token surface needed for balance checks.
const ERC20ABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`
