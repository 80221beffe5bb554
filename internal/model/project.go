package model

// Project is a capstone project the user is a member of. Projects are
// owned by the backend; only the fields needed for scoping and display
// are kept here.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
