package channel

import "regexp"

var (
	nonDigits = regexp.MustCompile(`[^0-9]`)
	// мобильные номера Непала: 10 цифр, префикс 97 или 98
	mobileNumber = regexp.MustCompile(`^9[78][0-9]{8}$`)
)

// IsReachable сообщает, доступен ли номер через WhatsApp
func IsReachable(phone string) bool {
	return mobileNumber.MatchString(nonDigits.ReplaceAllString(phone, ""))
}

// Normalize приводит номер к формату E.164 с кодом страны
func Normalize(phone, countryCode string) string {
	return countryCode + nonDigits.ReplaceAllString(phone, "")
}
