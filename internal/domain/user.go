package domain

import "time"

type User struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Color               string    `json:"color"`
	CurrentConnectionID *string   `json:"-"`
	CreatedAt           time.Time `json:"-"`
}
