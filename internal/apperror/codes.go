package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain and RPC error codes
const (
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeGasEstimationFailed   Code = "GAS_ESTIMATION_FAILED"
	CodeGasPriceAboveCeiling  Code = "GAS_PRICE_ABOVE_CEILING"
	CodeReceiptNotFound       Code = "RECEIPT_NOT_FOUND"
	CodeConfirmationTimeout   Code = "CONFIRMATION_TIMEOUT"
)

// Venue and quote error codes
const (
	CodeVenueQuoteFailed      Code = "VENUE_QUOTE_FAILED"
	CodeVenueUnavailable      Code = "VENUE_UNAVAILABLE"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
)

// Opportunity lifecycle error codes
const (
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeOpportunityExpired  Code = "OPPORTUNITY_EXPIRED"
	CodeOpportunityNotFound Code = "OPPORTUNITY_NOT_FOUND"
	CodeDuplicateActiveKey  Code = "DUPLICATE_ACTIVE_KEY"
	CodeProfitBelowMinimum  Code = "PROFIT_BELOW_MINIMUM"
	CodeStaleQuote          Code = "STALE_QUOTE"
	CodeKeyInCooldown       Code = "KEY_IN_COOLDOWN"
)

// Execution and contract error codes
const (
	CodeExecutionReverted     Code = "EXECUTION_REVERTED"
	CodeSubmissionRejected    Code = "SUBMISSION_REJECTED"
	CodeUnauthorizedExecutor  Code = "UNAUTHORIZED_EXECUTOR"
	CodeContractPaused        Code = "CONTRACT_PAUSED"
	CodeTokenBlacklisted      Code = "TOKEN_BLACKLISTED"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeDuplicateTransaction  Code = "DUPLICATE_TRANSACTION"
	CodeTransactionNotFound   Code = "TRANSACTION_NOT_FOUND"
	CodeFeeAboveMaximum       Code = "FEE_ABOVE_MAXIMUM"
	CodeDeadlineExceeded      Code = "DEADLINE_EXCEEDED"
	CodePrincipalNotRecovered Code = "PRINCIPAL_NOT_RECOVERED"
)

// Circuit breaker error codes
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
