package store

import (
	"context"

	"github.com/google/uuid"
)

const getUserByEmail = `
SELECT id, org_id, email, full_name, hashed_password, role, created_at
FROM users
WHERE email = $1
`

// GetUserByEmail looks up a user for login.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByEmail, email).
		Scan(&u.ID, &u.OrgID, &u.Email, &u.FullName, &u.HashedPassword, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByID = `
SELECT id, org_id, email, full_name, hashed_password, role, created_at
FROM users
WHERE id = $1
`

// GetUserByID fetches a user by primary key (refresh flow).
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByID, id).
		Scan(&u.ID, &u.OrgID, &u.Email, &u.FullName, &u.HashedPassword, &u.Role, &u.CreatedAt)
	return u, err
}
