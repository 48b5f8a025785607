package identity

import (
	"errors"
	"time"
)

// Roles an identity can be registered with.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var (
	// ErrInvalid means the candidate is missing required fields for its role.
	ErrInvalid = errors.New("identity: missing required fields")
	// ErrDuplicate means the email, RFID tag, or fingerprint token is already registered.
	ErrDuplicate = errors.New("identity: email, rfid, or fingerprint already registered")
	// ErrNotFound means no identity matched the lookup key.
	ErrNotFound = errors.New("identity: not found")
)

// StudentDetails are the attributes required for role "student".
type StudentDetails struct {
	MatricNumber string `json:"matricNumber"`
	Faculty      string `json:"faculty"`
	Department   string `json:"department"`
}

// TeacherDetails are the attributes required for role "teacher".
type TeacherDetails struct {
	StaffID     string `json:"staffId"`
	Designation string `json:"designation"`
}

// Identity is a registered student or teacher. Exactly one of Student or
// Teacher is set, matching Role. Records are immutable after registration.
type Identity struct {
	ID               string          `json:"id"`
	FullName         string          `json:"fullName"`
	Email            string          `json:"email"`
	Role             string          `json:"role"`
	RFIDTag          string          `json:"rfidTag"`
	FingerprintToken string          `json:"-"`
	Student          *StudentDetails `json:"student,omitempty"`
	Teacher          *TeacherDetails `json:"teacher,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Validate checks the base fields and that the role-specific details match
// the declared role.
func (id Identity) Validate() error {
	if id.FullName == "" || id.Email == "" || id.RFIDTag == "" || id.FingerprintToken == "" {
		return ErrInvalid
	}
	switch id.Role {
	case RoleStudent:
		if id.Teacher != nil || id.Student == nil {
			return ErrInvalid
		}
		if id.Student.MatricNumber == "" || id.Student.Faculty == "" || id.Student.Department == "" {
			return ErrInvalid
		}
	case RoleTeacher:
		if id.Student != nil || id.Teacher == nil {
			return ErrInvalid
		}
		if id.Teacher.StaffID == "" || id.Teacher.Designation == "" {
			return ErrInvalid
		}
	default:
		return ErrInvalid
	}
	return nil
}

// Summary is the caller-facing view of an identity, used in verification and
// login responses.
type Summary struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
	MatricNumber string `json:"matricNumber,omitempty"`
	StaffID      string `json:"staffId,omitempty"`
}

// Summarize builds the response view for an identity.
func Summarize(id Identity) Summary {
	s := Summary{ID: id.ID, FullName: id.FullName, Role: id.Role}
	if id.Student != nil {
		s.MatricNumber = id.Student.MatricNumber
	}
	if id.Teacher != nil {
		s.StaffID = id.Teacher.StaffID
	}
	return s
}
