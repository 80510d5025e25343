package models

// Error codes returned in ErrorResponse.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeEmptyScript      = "EMPTY_SCRIPT"
	ErrCodeUnsupportedType  = "UNSUPPORTED_FILE_TYPE"
	ErrCodeFileTooLarge     = "FILE_TOO_LARGE"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeShotNotFound     = "SHOT_NOT_FOUND"
	ErrCodeOrphanFrame      = "ORPHAN_FRAME"
	ErrCodeGenerationActive = "GENERATION_IN_PROGRESS"
	ErrCodeInvalidPlan      = "INVALID_PLAN"
	ErrCodeInvalidPlanSize  = "INVALID_PLAN_SIZE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUpstreamFailure  = "UPSTREAM_FAILURE"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
