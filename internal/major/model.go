package major

import (
	"github.com/uptrace/bun"
)

type Major struct {
	bun.BaseModel `bun:"table:majors"`

	ID            int     `bun:"id,pk,autoincrement" json:"id"`
	Name          string  `bun:"major_name,notnull,unique" json:"major_name"`
	Description   *string `bun:"major_description" json:"major_description"`
	CountStudents int     `bun:"count_students,notnull,default:0" json:"count_students"`
}

func (m *Major) PK() int { return m.ID }

type CreateRequest struct {
	Name        string  `json:"major_name" validate:"required,min=1,max=100"`
	Description *string `json:"major_description" validate:"omitempty,max=500"`
}

type UpdateDescriptionRequest struct {
	Name        string  `json:"major_name" validate:"required,min=1,max=100"`
	Description *string `json:"major_description" validate:"omitempty,max=500"`
}

type MajorResponse struct {
	Message string `json:"message"`
	Major   *Major `json:"major,omitempty"`
}
