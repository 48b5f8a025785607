package identity

import "context"

// Store persists identities and enforces uniqueness of email, RFID tag, and
// fingerprint token across all records. Lookups are exact-match and return
// (nil, nil) on a miss.
type Store interface {
	// Register validates the candidate, assigns it an id, and inserts it.
	// The uniqueness check is atomic with the insert: two registrations
	// racing on the same key yield one success and one ErrDuplicate.
	Register(ctx context.Context, candidate Identity) (Identity, error)

	FindByRFID(ctx context.Context, tag string) (*Identity, error)
	FindByFingerprint(ctx context.Context, token string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)

	// List returns all identities, newest first.
	List(ctx context.Context) ([]Identity, error)
	// CountByRole returns the number of identities per role.
	CountByRole(ctx context.Context) (map[string]int, error)
}
