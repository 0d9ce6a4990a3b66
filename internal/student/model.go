package student

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/store"
	"github.com/SeerNT/UniversityAPI/internal/validation"

	"github.com/uptrace/bun"
)

type Student struct {
	bun.BaseModel `bun:"table:students"`

	ID             int     `bun:"id,pk,autoincrement" json:"id"`
	PhoneNumber    string  `bun:"phone_number,notnull" json:"phone_number"`
	FirstName      string  `bun:"first_name,notnull" json:"first_name"`
	LastName       string  `bun:"last_name,notnull" json:"last_name"`
	DateOfBirth    Date    `bun:"date_of_birth,type:date,notnull" json:"date_of_birth"`
	Email          string  `bun:"email,notnull" json:"email"`
	Address        string  `bun:"address,notnull" json:"address"`
	EnrollmentYear int     `bun:"enrollment_year,notnull" json:"enrollment_year"`
	Course         int     `bun:"course,notnull" json:"course"`
	SpecialNotes   *string `bun:"special_notes" json:"special_notes"`
	MajorID        int     `bun:"major_id,notnull" json:"major_id"`
	Photo          *string `bun:"photo" json:"photo"`
}

func (s *Student) PK() int { return s.ID }

var (
	_ bun.BeforeCreateTableHook = (*Student)(nil)
	_ bun.AfterCreateTableHook  = (*Student)(nil)
)

func (*Student) BeforeCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	query.ForeignKey(`("major_id") REFERENCES "majors" ("id") ON DELETE RESTRICT`)
	return nil
}

func (*Student) AfterCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	_, err := query.DB().NewCreateIndex().
		Model((*Student)(nil)).
		Index("students_major_id_idx").
		Column("major_id").
		IfNotExists().
		Exec(ctx)
	return err
}

// Details is a student joined with the name of its major.
type Details struct {
	Student
	Major string `json:"major"`
}

// Date is a calendar date without time of day, YYYY-MM-DD on the wire.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(validation.DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(validation.DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(validation.DateLayout) {
		s = s[:len(validation.DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type CreateRequest struct {
	PhoneNumber    string  `json:"phone_number" validate:"required,phone"`
	FirstName      string  `json:"first_name" validate:"required,min=1,max=50"`
	LastName       string  `json:"last_name" validate:"required,min=1,max=50"`
	DateOfBirth    string  `json:"date_of_birth" validate:"required,past_date"`
	Email          string  `json:"email" validate:"required,email"`
	Address        string  `json:"address" validate:"required,min=10,max=200"`
	EnrollmentYear int     `json:"enrollment_year" validate:"required,min=2002"`
	MajorID        int     `json:"major_id" validate:"required,min=1"`
	Course         int     `json:"course" validate:"required,min=1,max=5"`
	SpecialNotes   *string `json:"special_notes" validate:"omitempty,max=500"`
	Photo          *string `json:"photo" validate:"omitempty,max=100"`
}

// Student converts a validated request into a model.
func (r CreateRequest) Student() (*Student, error) {
	dob, err := ParseDate(r.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("%w: date_of_birth", ErrInvalidInput)
	}
	return &Student{
		PhoneNumber:    r.PhoneNumber,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		DateOfBirth:    dob,
		Email:          r.Email,
		Address:        r.Address,
		EnrollmentYear: r.EnrollmentYear,
		Course:         r.Course,
		SpecialNotes:   r.SpecialNotes,
		MajorID:        r.MajorID,
		Photo:          r.Photo,
	}, nil
}

// UpdateRequest holds the fields of a partial update; nil means unchanged.
type UpdateRequest struct {
	PhoneNumber    *string `json:"phone_number" validate:"omitempty,phone"`
	FirstName      *string `json:"first_name" validate:"omitempty,min=1,max=50"`
	LastName       *string `json:"last_name" validate:"omitempty,min=1,max=50"`
	DateOfBirth    *string `json:"date_of_birth" validate:"omitempty,past_date"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Address        *string `json:"address" validate:"omitempty,min=10,max=200"`
	EnrollmentYear *int    `json:"enrollment_year" validate:"omitempty,min=2002"`
	MajorID        *int    `json:"major_id" validate:"omitempty,min=1"`
	Course         *int    `json:"course" validate:"omitempty,min=1,max=5"`
	SpecialNotes   *string `json:"special_notes" validate:"omitempty,max=500"`
	Photo          *string `json:"photo" validate:"omitempty,max=100"`
}

// Changes maps every present field to its column.
func (r UpdateRequest) Changes() (store.Changes, error) {
	c := store.Changes{}

	setString := func(col string, v *string) {
		if v != nil {
			c[col] = *v
		}
	}
	setInt := func(col string, v *int) {
		if v != nil {
			c[col] = *v
		}
	}

	setString("phone_number", r.PhoneNumber)
	setString("first_name", r.FirstName)
	setString("last_name", r.LastName)
	setString("email", r.Email)
	setString("address", r.Address)
	setString("special_notes", r.SpecialNotes)
	setString("photo", r.Photo)
	setInt("enrollment_year", r.EnrollmentYear)
	setInt("major_id", r.MajorID)
	setInt("course", r.Course)

	if r.DateOfBirth != nil {
		dob, err := ParseDate(*r.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("%w: date_of_birth", ErrInvalidInput)
		}
		c["date_of_birth"] = dob
	}

	return c, nil
}

type StudentResponse struct {
	Message string   `json:"message"`
	Student *Student `json:"student,omitempty"`
}
