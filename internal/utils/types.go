package utils

// ToStringPtr returns a pointer to the given string, for optional
// response fields
func ToStringPtr(s string) *string {
	return &s
}
