package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeContractCallFailed:       "Smart contract call failed",

	CodeUserRejected:        "Request rejected in wallet",
	CodeWalletUnavailable:   "No wallet key configured",
	CodeNotConnected:        "Wallet is not connected",
	CodeTransactionReverted: "Transaction reverted on-chain",
	CodeConfirmationTimeout: "Timed out waiting for confirmation; the transaction may still confirm",
	CodeUnknownEndpoint:     "Unknown RPC endpoint",
	CodeSignerMismatch:      "Transaction sender does not match the wallet account",

	CodeUnsupportedNetwork:   "Please connect to a supported network",
	CodeDeploymentLoadFailed: "Failed to load contract deployment data",
	CodeRepositoryReadError:  "Failed to read products from the contract",
	CodeTransactionFailed:    "Transaction failed",
	CodeInvalidAmount:        "Invalid ether amount",
	CodeSessionBusy:          "Another operation is in progress",
	CodeOperationAbandoned:   "Operation abandoned after a network change",

	CodeCacheMiss: "Cache miss",

	CodeCircuitOpen: "Circuit breaker is open",
}
