package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
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

// Chain and wallet error codes
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"

	CodeUserRejected         Code = "USER_REJECTED"
	CodeWalletUnavailable    Code = "WALLET_UNAVAILABLE"
	CodeNotConnected         Code = "NOT_CONNECTED"
	CodeTransactionReverted  Code = "TRANSACTION_REVERTED"
	CodeConfirmationTimeout  Code = "CONFIRMATION_TIMEOUT"
	CodeUnknownEndpoint      Code = "UNKNOWN_ENDPOINT"
	CodeSignerMismatch       Code = "SIGNER_MISMATCH"
)

// Marketplace error codes
const (
	CodeUnsupportedNetwork   Code = "UNSUPPORTED_NETWORK"
	CodeDeploymentLoadFailed Code = "DEPLOYMENT_LOAD_FAILED"
	CodeRepositoryReadError  Code = "REPOSITORY_READ_ERROR"
	CodeTransactionFailed    Code = "TRANSACTION_FAILED"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeSessionBusy          Code = "SESSION_BUSY"
	CodeOperationAbandoned   Code = "OPERATION_ABANDONED"

	CodeCacheMiss Code = "CACHE_MISS"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
