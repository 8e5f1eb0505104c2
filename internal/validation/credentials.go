// Package validation выполняет локальную проверку учётных данных и
// структур запросов до любого сетевого вызова, чтобы отказ происходил
// быстро и без расходования квоты бэкенда.
package validation

import "strings"

// Тексты нарушений правил проверки учётных данных.
const (
	MsgEmailRequired      = "email required"
	MsgInvalidEmailFormat = "invalid email format"
	MsgPasswordRequired   = "password required"
	MsgPasswordTooShort   = "password too short"
)

// MinPasswordLength минимальная допустимая длина пароля.
const MinPasswordLength = 6

// Result результат проверки пары email/пароль.
type Result struct {
	Valid  bool
	Errors []string
}

// ValidateCredentials проверяет пару email/пароль. Правила применяются
// независимо, собираются все нарушения. Функция чистая, без побочных эффектов.
func ValidateCredentials(email, password string) Result {
	errs := emailErrors(email)

	switch {
	case password == "":
		errs = append(errs, MsgPasswordRequired)
	case len(password) < MinPasswordLength:
		errs = append(errs, MsgPasswordTooShort)
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateEmail проверяет только адрес почты по тем же правилам.
func ValidateEmail(email string) Result {
	errs := emailErrors(email)
	return Result{Valid: len(errs) == 0, Errors: errs}
}

func emailErrors(email string) []string {
	trimmed := strings.TrimSpace(email)
	switch {
	case trimmed == "":
		return []string{MsgEmailRequired}
	case !emailFormatOK(trimmed):
		return []string{MsgInvalidEmailFormat}
	}
	return nil
}

// emailFormatOK проверяет шаблон "local-part@domain.tld": без пробельных
// символов, ровно один @, хотя бы одна точка после @.
func emailFormatOK(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	at := strings.IndexByte(email, '@')
	local, domain := email[:at], email[at+1:]
	if local == "" || domain == "" {
		return false
	}
	dot := strings.IndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return true
}
