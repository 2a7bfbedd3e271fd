package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter      ErrorCode = 100
	ErrCodeInvalidConfiguration  ErrorCode = 101
	ErrCodeInvalidIndicatorValue ErrorCode = 102
	ErrCodeMissingAssetID        ErrorCode = 103
	ErrCodeMissingParameter      ErrorCode = 104
	ErrCodeInvalidVersion        ErrorCode = 105
	ErrCodeInvalidPeriod         ErrorCode = 106

	// Data errors (200-299)
	ErrCodeDataNotFound   ErrorCode = 200
	ErrCodeQueryFailed    ErrorCode = 201
	ErrCodeDataLoadFailed ErrorCode = 202

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeInsufficientData       ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError ErrorCode = 400
	ErrCodeScoringFailed       ErrorCode = 401

	// Feature store errors (500-599)
	ErrCodeEntityNotFound      ErrorCode = 500
	ErrCodeFeatureViewNotFound ErrorCode = 501
	ErrCodeMaterializeFailed   ErrorCode = 502
	ErrCodeFeatureViewExists   ErrorCode = 503

	// Registry errors (600-699)
	ErrCodeModelNotFound        ErrorCode = 600
	ErrCodeModelAlreadyExists   ErrorCode = 601
	ErrCodeSignatureMismatch    ErrorCode = 602
	ErrCodeVersionMismatch      ErrorCode = 603
	ErrCodeModelLogFailed       ErrorCode = 604

	// Pipeline errors (700-799)
	ErrCodeTaskNotFound     ErrorCode = 700
	ErrCodeDuplicateTask    ErrorCode = 701
	ErrCodeDependencyCycle  ErrorCode = 702
	ErrCodeTaskFailed       ErrorCode = 703
	ErrCodePipelineRunning  ErrorCode = 704
)
