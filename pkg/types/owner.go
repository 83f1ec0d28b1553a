package types

import "strings"

type OwnerKind string

const (
	OwnerKindStudent    OwnerKind = "STUDENT"
	OwnerKindInstructor OwnerKind = "INSTRUCTOR"
)

func (k OwnerKind) Valid() bool {
	return k == OwnerKindStudent || k == OwnerKindInstructor
}

// Folder is the top level object-store folder holding this kind's files.
func (k OwnerKind) Folder() string {
	switch k {
	case OwnerKindStudent:
		return "students"
	case OwnerKindInstructor:
		return "instructors"
	}
	return strings.ToLower(string(k))
}

// OwnerKindFromFolder reverses Folder.
func OwnerKindFromFolder(folder string) (OwnerKind, bool) {
	switch folder {
	case "students":
		return OwnerKindStudent, true
	case "instructors":
		return OwnerKindInstructor, true
	}
	return "", false
}

// Owner is the student or instructor a document or checklist belongs to.
// Only the fields the core needs are loaded.
type Owner struct {
	ID       string    `db:"id"`
	Kind     OwnerKind `db:"-"`
	FullName string    `db:"full_name"`
}
