package user

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID          int       `bun:"id,pk,autoincrement" json:"id"`
	Email       string    `bun:"email,notnull,unique" json:"email"`
	Password    string    `bun:"password,notnull" json:"-"`
	PhoneNumber string    `bun:"phone_number" json:"phone_number,omitempty"`
	FirstName   string    `bun:"first_name" json:"first_name,omitempty"`
	LastName    string    `bun:"last_name" json:"last_name,omitempty"`
	IsAdmin     bool      `bun:"is_admin,notnull,default:false" json:"is_admin"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (u *User) PK() int { return u.ID }
