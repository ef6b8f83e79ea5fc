package apperror

// messages maps error codes to default human-readable messages.
var messages = map[Code]string{
	CodeRequiredField:   "a required field is missing",
	CodeInvalidInput:    "invalid input",
	CodeInvalidState:    "invalid state",
	CodeNotFound:        "resource not found",
	CodeValidationError: "validation failed",

	CodeConfigurationError: "configuration error",

	CodeExternalServiceError: "external service error",
	CodeServiceTimeout:       "service call timed out",
	CodeServiceUnavailable:   "service unavailable",
	CodeRateLimitExceeded:    "rate limit exceeded",

	CodeInternalError: "internal error",
	CodeUnknownError:  "unknown error",

	CodeChainConnectionFailed: "failed to connect to chain RPC",
	CodeChainRPCError:         "chain RPC call failed",
	CodeGasEstimationFailed:   "gas estimation failed",
	CodeGasPriceAboveCeiling:  "gas price above configured ceiling",
	CodeReceiptNotFound:       "transaction receipt not found",
	CodeConfirmationTimeout:   "confirmation not received within timeout",

	CodeVenueQuoteFailed:      "venue quote failed",
	CodeVenueUnavailable:      "venue unavailable",
	CodeInvalidQuote:          "invalid quote",
	CodeContractCallFailed:    "contract call failed",
	CodeInsufficientLiquidity: "insufficient liquidity",

	CodeInvalidTransition:   "illegal opportunity state transition",
	CodeOpportunityExpired:  "opportunity expired",
	CodeOpportunityNotFound: "opportunity not found",
	CodeDuplicateActiveKey:  "detection key already has an active opportunity",
	CodeProfitBelowMinimum:  "profit below configured minimum",
	CodeStaleQuote:          "quote is stale",
	CodeKeyInCooldown:       "detection key is cooling down",

	CodeExecutionReverted:     "on-chain execution reverted",
	CodeSubmissionRejected:    "submission rejected before broadcast",
	CodeUnauthorizedExecutor:  "caller is not an authorized executor",
	CodeContractPaused:        "execution contract is paused",
	CodeTokenBlacklisted:      "token is blacklisted",
	CodeInsufficientBalance:   "contract balance below required input",
	CodeDuplicateTransaction:  "transaction hash already recorded",
	CodeTransactionNotFound:   "transaction not found",
	CodeFeeAboveMaximum:       "fee percentage above maximum",
	CodeDeadlineExceeded:      "execution deadline exceeded",
	CodePrincipalNotRecovered: "second leg did not recover principal",

	CodeCircuitOpen:     "circuit breaker open",
	CodeCircuitHalfOpen: "circuit breaker half-open",
}
