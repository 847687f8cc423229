package subscriber_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/subscriber"
)

type memRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscriber
	seq  int
}

func newMemRepo() *memRepo { return &memRepo{subs: map[string]*domain.Subscriber{}} }

func (r *memRepo) Get(_ context.Context, orgID, id string) (*domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.OrganizationID != orgID {
		return nil, subscriber.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) ListPage(_ context.Context, orgID string, limit, offset int) ([]domain.Subscriber, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Subscriber
	for _, s := range r.subs {
		if s.OrganizationID == orgID {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *memRepo) Create(_ context.Context, s *domain.Subscriber) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subs {
		if existing.OrganizationID == s.OrganizationID && existing.Email == s.Email {
			return "", subscriber.ErrDuplicate
		}
	}
	r.seq++
	id := fmt.Sprintf("s%03d", r.seq)
	cp := *s
	cp.ID = id
	r.subs[id] = &cp
	return id, nil
}

func (r *memRepo) Update(_ context.Context, orgID, id string, u subscriber.UpdateFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.OrganizationID != orgID {
		return subscriber.ErrNotFound
	}
	if u.Email != nil {
		s.Email = *u.Email
	}
	if u.CustomFields != nil {
		s.CustomFields = u.CustomFields
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if u.GPGPublicKey != nil {
		s.GPGPublicKey = *u.GPGPublicKey
	}
	if u.EncryptEmails != nil {
		s.EncryptEmails = *u.EncryptEmails
	}
	return nil
}

type prefixKeys struct{}

func (prefixKeys) ValidatePublicKey(k string) bool {
	return strings.HasPrefix(k, "-----BEGIN PGP PUBLIC KEY BLOCK-----")
}

const validKey = "-----BEGIN PGP PUBLIC KEY BLOCK-----\n...\n-----END PGP PUBLIC KEY BLOCK-----"

func TestCreate(t *testing.T) {
	svc := subscriber.NewService(newMemRepo(), prefixKeys{})
	ctx := context.Background()

	s, err := svc.Create(ctx, "org-1", subscriber.CreateInput{
		Email:        "  Ann@Example.COM ",
		CustomFields: map[string]any{"age": "not-a-number"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", s.Email)
	assert.True(t, s.IsActive)
	assert.Equal(t, "not-a-number", s.CustomFields["age"])

	_, err = svc.Create(ctx, "org-1", subscriber.CreateInput{Email: "ANN@example.com"})
	assert.ErrorIs(t, err, subscriber.ErrDuplicate)

	_, err = svc.Create(ctx, "org-2", subscriber.CreateInput{Email: "ann@example.com"})
	assert.NoError(t, err)

	_, err = svc.Create(ctx, "org-1", subscriber.CreateInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, subscriber.ErrInvalidEmail)
}

func TestList_Paging(t *testing.T) {
	svc := subscriber.NewService(newMemRepo(), prefixKeys{})
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := svc.Create(ctx, "org-1", subscriber.CreateInput{Email: fmt.Sprintf("u%d@example.com", i)})
		require.NoError(t, err)
	}

	p, err := svc.List(ctx, "org-1", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, p.Total)
	assert.Len(t, p.Data, 5)
	assert.Equal(t, 3, p.Page)

	p, err = svc.List(ctx, "org-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, subscriber.DefaultPageSize, p.Limit)

	p, err = svc.List(ctx, "org-1", 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, subscriber.MaxPageSize, p.Limit)

	p, err = svc.List(ctx, "org-9", 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, p.Data)
	assert.Empty(t, p.Data)
}

func TestUpdate(t *testing.T) {
	svc := subscriber.NewService(newMemRepo(), prefixKeys{})
	ctx := context.Background()
	s, err := svc.Create(ctx, "org-1", subscriber.CreateInput{Email: "a@example.com"})
	require.NoError(t, err)

	email, inactive := "B@Example.com", false
	got, err := svc.Update(ctx, "org-1", s.ID, subscriber.UpdateFields{Email: &email, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)
	assert.False(t, got.IsActive)

	bad := "nope"
	_, err = svc.Update(ctx, "org-1", s.ID, subscriber.UpdateFields{Email: &bad})
	assert.ErrorIs(t, err, subscriber.ErrInvalidEmail)

	_, err = svc.Update(ctx, "org-2", s.ID, subscriber.UpdateFields{IsActive: &inactive})
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
}

func TestKeyEnrollment(t *testing.T) {
	svc := subscriber.NewService(newMemRepo(), prefixKeys{})
	ctx := context.Background()
	s, err := svc.Create(ctx, "org-1", subscriber.CreateInput{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.EnrollKey(ctx, "org-1", s.ID, "garbage", nil)
	assert.ErrorIs(t, err, subscriber.ErrInvalidKey)

	got, err := svc.EnrollKey(ctx, "org-1", s.ID, validKey, nil)
	require.NoError(t, err)
	assert.True(t, got.EncryptEmails)
	assert.True(t, got.CanEncrypt())

	off := false
	got, err = svc.EnrollKey(ctx, "org-1", s.ID, validKey, &off)
	require.NoError(t, err)
	assert.False(t, got.CanEncrypt())

	got, err = svc.RemoveKey(ctx, "org-1", s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.GPGPublicKey)
	assert.False(t, got.EncryptEmails)

	_, err = svc.RemoveKey(ctx, "org-1", "missing")
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
}
