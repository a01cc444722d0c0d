package models

// DefaultAvailableVotes is the vote budget given to new users.
const DefaultAvailableVotes = 5

// User represents a participant who can submit proposals and vote
type User struct {
	Base
	Email          string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	AvailableVotes int    `gorm:"not null" json:"available_votes"`

	Projects []BudgetProject `gorm:"foreignKey:UserID" json:"projects,omitempty"`
	Votes    []Vote          `gorm:"foreignKey:UserID" json:"votes,omitempty"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
