package errors

// CategoryOf returns the category of the first EnhancedError in err's chain,
// or CategoryGeneric when there is none.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.GetCategory()
	}
	return CategoryGeneric
}

// HasCategory reports whether any EnhancedError in err's chain carries category.
func HasCategory(err error, category ErrorCategory) bool {
	for err != nil {
		if ee, ok := err.(*EnhancedError); ok && ee.category == category {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				if HasCategory(e, category) {
					return true
				}
			}
			return false
		}
		err = Unwrap(err)
	}
	return false
}

func IsNotFound(err error) bool        { return HasCategory(err, CategoryNotFound) }
func IsForbidden(err error) bool       { return HasCategory(err, CategoryForbidden) }
func IsInvalidArgument(err error) bool { return HasCategory(err, CategoryValidation) }
func IsRateLimited(err error) bool     { return HasCategory(err, CategoryRateLimit) }
func IsConflict(err error) bool        { return HasCategory(err, CategoryConflict) }
