package errx

// Common error constructors for convenience

// Internal creates an internal server error
func Internal(message string) *Error {
	return New(message, TypeInternal)
}

// Validation creates a validation error
func Validation(message string) *Error {
	return New(message, TypeValidation)
}

// NotFound creates a not found error
func NotFound(message string) *Error {
	return New(message, TypeNotFound)
}

// Unauthorized creates an authorization error
func Unauthorized(message string) *Error {
	return New(message, TypeAuthorization)
}

// Conflict creates a conflict error
func Conflict(message string) *Error {
	return New(message, TypeConflict)
}

// Business creates a business logic error
func Business(message string) *Error {
	return New(message, TypeBusiness)
}

// External creates an external service error
func External(message string) *Error {
	return New(message, TypeExternal)
}

// RateLimit creates a provider rate-limit error
func RateLimit(message string) *Error {
	return New(message, TypeRateLimit)
}

// Quota creates a provider quota/billing error
func Quota(message string) *Error {
	return New(message, TypeQuota)
}

// Transient creates a retryable upstream failure error
func Transient(message string) *Error {
	return New(message, TypeTransient)
}

// ContentSafety creates a content-safety rejection error
func ContentSafety(message string) *Error {
	return New(message, TypeContentSafety)
}
