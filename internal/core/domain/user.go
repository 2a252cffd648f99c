package domain

import "time"

// Role is an open string; the data layer does not restrict its values.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// IsStaff reports whether the role may create and mutate parcels.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerator
}

const DefaultUserStatus = 0

type User struct {
	ID                string    `json:"id"`
	FullName          string    `json:"fullname"`
	Email             string    `json:"email"`
	Password          string    `json:"-"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	Age               *int      `json:"age,omitempty"`
	Country           string    `json:"country,omitempty"`
	Address           string    `json:"address,omitempty"`
	Status            int       `json:"status"`
	Role              Role      `json:"role"`
	CredentialVersion int       `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfileUpdate carries the mutable profile attributes. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName    *string
	PhoneNumber *string
	Address     *string
	Country     *string
	Age         *int
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.PhoneNumber == nil && u.Address == nil &&
		u.Country == nil && u.Age == nil
}

// Apply copies the non-nil fields onto user.
func (u ProfileUpdate) Apply(user *User) {
	if u.FullName != nil {
		user.FullName = *u.FullName
	}
	if u.PhoneNumber != nil {
		user.PhoneNumber = *u.PhoneNumber
	}
	if u.Address != nil {
		user.Address = *u.Address
	}
	if u.Country != nil {
		user.Country = *u.Country
	}
	if u.Age != nil {
		age := *u.Age
		user.Age = &age
	}
}

// Identity is what a verified bearer token proves about its holder.
type Identity struct {
	UserID            string
	Email             string
	Role              Role
	CredentialVersion int
}
