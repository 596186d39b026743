package session

import (
	"context"
	"crypto/tls"
	"net/url"

	"github.com/valkey-io/valkey-go"

	"example.com/gymbooking/internal/domain"
)

// ValkeyStore keeps the session in a Valkey hash, one key per profile.
type ValkeyStore struct {
	client valkey.Client
	key    string
}

// DialValkey builds a client from a valkey:// or valkeys:// URI.
func DialValkey(uri string) (valkey.Client, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	options := valkey.ClientOption{InitAddress: []string{u.Host}}
	if u.User != nil {
		options.Username = u.User.Username()
		options.Password, _ = u.User.Password()
	}
	if u.Scheme == "valkeys" || u.Scheme == "rediss" {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return valkey.NewClient(options)
}

// NewValkeyStore wraps client. The store owns it and closes it on Close.
func NewValkeyStore(client valkey.Client, profile string) *ValkeyStore {
	return &ValkeyStore{client: client, key: sessionKey(profile)}
}

// Load implements Store.
func (v *ValkeyStore) Load(ctx context.Context) (domain.Session, error) {
	fields, err := v.client.Do(ctx, v.client.B().Hgetall().Key(v.key).Build()).AsStrMap()
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{AuthToken: fields[fieldToken], UserID: fields[fieldUserID]}, nil
}

// Save implements Store. Both fields are always written, so HSET replaces the record.
func (v *ValkeyStore) Save(ctx context.Context, s domain.Session) error {
	cmd := v.client.B().Hset().Key(v.key).FieldValue().
		FieldValue(fieldToken, s.AuthToken).
		FieldValue(fieldUserID, s.UserID).
		Build()
	return v.client.Do(ctx, cmd).Error()
}

// Clear implements Store.
func (v *ValkeyStore) Clear(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Del().Key(v.key).Build()).Error()
}

// Close implements Store.
func (v *ValkeyStore) Close() error {
	v.client.Close()
	return nil
}
