package list_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/segmentation"
	"github.com/ignite/newsletter/internal/service/list"
)

// memRepo is an in-memory list repository for unit testing.
type memRepo struct {
	mu    sync.Mutex
	lists map[string]*domain.List
}

func newMemRepo() *memRepo {
	return &memRepo{lists: make(map[string]*domain.List)}
}

func (m *memRepo) put(l domain.List) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[l.ID] = &l
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[id]
	if !ok {
		return nil, list.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, orgID string) ([]domain.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.List
	for _, l := range m.lists {
		if l.OrgID() == orgID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, l *domain.List) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		return "", fmt.Errorf("id required")
	}
	cp := *l
	m.lists[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Update(_ context.Context, id string, u list.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[id]
	if !ok {
		return list.ErrNotFound
	}
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.CustomFields != nil {
		l.CustomFields = u.CustomFields
	}
	if u.OrganizationID != nil {
		org := *u.OrganizationID
		l.OrganizationID = &org
	}
	return nil
}

// memSubs is an in-memory subscriber store keyed by (organization, email).
type memSubs struct {
	mu        sync.Mutex
	subs      []domain.Subscriber
	insertErr error
	inserts   int
}

func (m *memSubs) add(s domain.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, s)
}

func (m *memSubs) find(orgID, email string) (domain.Subscriber, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.OrganizationID == orgID && s.Email == email {
			return s, true
		}
	}
	return domain.Subscriber{}, false
}

func (m *memSubs) Segment(_ context.Context, orgID string, f segmentation.Filters) ([]domain.Subscriber, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.Subscriber
	for i := range m.subs {
		if segmentation.Match(f, orgID, &m.subs[i]) {
			matched = append(matched, m.subs[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return segmentation.Page(f, matched), len(matched), nil
}

func (m *memSubs) ExistingEmails(_ context.Context, orgID string, emails []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		want[e] = struct{}{}
	}
	out := make(map[string]struct{})
	for _, s := range m.subs {
		if _, ok := want[s.Email]; ok && s.OrganizationID == orgID {
			out[s.Email] = struct{}{}
		}
	}
	return out, nil
}

func (m *memSubs) InsertSubscribers(_ context.Context, subs []domain.Subscriber) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	n := 0
	for _, s := range subs {
		conflict := false
		for _, e := range m.subs {
			if e.OrganizationID == s.OrganizationID && e.Email == s.Email {
				conflict = true
				break
			}
		}
		if !conflict {
			m.subs = append(m.subs, s)
			n++
		}
	}
	return n, nil
}

func strPtr(s string) *string { return &s }
