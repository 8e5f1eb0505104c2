package models

import "time"

// ToUser единственная точка преобразования строки профиля в клиентскую модель.
// Nullable-поля получают значения по умолчанию, даты разбираются из RFC3339;
// нечитаемая дата трактуется как отсутствующая.
func (p *Profile) ToUser() *User {
	u := &User{
		ID:                 p.ID,
		Email:              p.Email,
		DisplayName:        p.DisplayName,
		Role:               RoleStudent,
		KYCStatus:          KYCNotSubmitted,
		SubscriptionStatus: SubscriptionFree,
	}

	switch Role(p.Role) {
	case RoleStudent, RoleProfessional, RoleAdmin:
		u.Role = Role(p.Role)
	}
	if p.KYCStatus != nil {
		switch KYCStatus(*p.KYCStatus) {
		case KYCNotSubmitted, KYCPending, KYCVerified, KYCRejected:
			u.KYCStatus = KYCStatus(*p.KYCStatus)
		}
	}
	if p.ProfileImage != nil {
		u.ProfileImage = *p.ProfileImage
	}
	if p.University != nil {
		u.University = *p.University
	}
	if p.Specialty != nil {
		u.Specialty = *p.Specialty
	}
	if p.SubscriptionStatus != nil && *p.SubscriptionStatus != "" {
		u.SubscriptionStatus = *p.SubscriptionStatus
	}
	if ts := parseTime(p.SubscriptionExpiry); !ts.IsZero() {
		u.SubscriptionExpiry = &ts
	}
	u.CreatedAt = parseTime(p.CreatedAt)
	u.UpdatedAt = parseTime(p.UpdatedAt)
	return u
}

func parseTime(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
