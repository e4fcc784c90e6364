package op

import "context"

// User is the end-user a grant was (or will be) issued for. The full identity
// lifecycle is owned by an external collaborator; this core only resolves and
// embeds users.
type User struct {
	ID          string
	Sub         string
	Username    string
	Name        string
	Email       string
	PhoneNumber string

	// HashedPassword is a bcrypt hash, only populated for password based flows.
	HashedPassword string

	Claims map[string]any
}

func (u User) Exists() bool {
	return u.ID != ""
}

type UserQueryRepository interface {
	Get(ctx context.Context, tenant Tenant, id string) (*User, error)
	FindBySub(ctx context.Context, tenant Tenant, sub string) (*User, error)
	FindByPhone(ctx context.Context, tenant Tenant, phone string) (*User, error)
	FindByEmail(ctx context.Context, tenant Tenant, email string) (*User, error)
	FindByUsername(ctx context.Context, tenant Tenant, username string) (*User, error)
}
