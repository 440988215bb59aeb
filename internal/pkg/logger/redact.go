package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
// A display-name form "Risk Desk <desk@example.com>" keeps only the masked address.
func RedactEmail(email string) string {
	email = strings.TrimSpace(email)
	if lt := strings.LastIndex(email, "<"); lt >= 0 && strings.HasSuffix(email, ">") {
		email = email[lt+1 : len(email)-1]
	}
	at := strings.LastIndex(email, "@")
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	name, domain := email[:at], email[at+1:]
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}
