package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/segmentation"
	"github.com/ignite/newsletter/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository and list.SubscriberStore
// against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func scanSubscriber(row interface{ Scan(...any) error }) (*domain.Subscriber, error) {
	var (
		s      domain.Subscriber
		fields []byte
	)
	if err := row.Scan(&s.ID, &s.OrganizationID, &s.Email, &fields,
		&s.GPGPublicKey, &s.EncryptEmails, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := scanJSON(fields, &s.CustomFields); err != nil {
		return nil, err
	}
	if s.CustomFields == nil {
		s.CustomFields = map[string]any{}
	}
	return &s, nil
}

func (r *SubscriberRepo) collect(ctx context.Context, q string, args ...interface{}) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Subscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Segment runs the compiled filter: a count ignoring paging, then the page.
func (r *SubscriberRepo) Segment(ctx context.Context, orgID string, f segmentation.Filters) ([]domain.Subscriber, int, error) {
	q := segmentation.Compile(f, orgID)

	var total int
	if err := r.db.QueryRowContext(ctx, q.CountSQL, q.CountArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count segment: %w", err)
	}
	if total == 0 {
		return []domain.Subscriber{}, 0, nil
	}

	out, err := r.collect(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query segment: %w", err)
	}
	return out, total, nil
}

func (r *SubscriberRepo) ExistingEmails(ctx context.Context, orgID string, emails []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(emails) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM subscribers WHERE organization_id = $1 AND email = ANY($2)`,
		orgID, pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("existing emails: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out[e] = struct{}{}
	}
	return out, rows.Err()
}

// InsertSubscribers writes the batch in one statement via UNNEST. Rows that
// hit the (organization_id, email) constraint are skipped.
func (r *SubscriberRepo) InsertSubscribers(ctx context.Context, subs []domain.Subscriber) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(subs))
	orgs := make([]string, len(subs))
	emails := make([]string, len(subs))
	fields := make([]string, len(subs))
	active := make([]bool, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
		if ids[i] == "" {
			ids[i] = uuid.New().String()
		}
		orgs[i] = s.OrganizationID
		emails[i] = s.Email
		cf, err := jsonb(s.CustomFields)
		if err != nil {
			return 0, fmt.Errorf("encode custom fields for %s: %w", s.Email, err)
		}
		fields[i] = cf
		active[i] = s.IsActive
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, organization_id, email, custom_fields, is_active, encrypt_emails, created_at)
		SELECT data.id, data.org, data.email, data.fields::jsonb, data.active, false, NOW()
		FROM UNNEST($1::uuid[], $2::text[], $3::text[], $4::text[], $5::boolean[])
			AS data(id, org, email, fields, active)
		ON CONFLICT (organization_id, email) DO NOTHING
	`, pq.Array(ids), pq.Array(orgs), pq.Array(emails), pq.Array(fields), pq.Array(active))
	if err != nil {
		return 0, fmt.Errorf("bulk insert subscribers: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const subscriberColumns = `id, organization_id, email, COALESCE(custom_fields, '{}'::jsonb),
	COALESCE(gpg_public_key, ''), encrypt_emails, is_active, created_at`

func (r *SubscriberRepo) Get(ctx context.Context, orgID, id string) (*domain.Subscriber, error) {
	if !validID(id) {
		return nil, subscriber.ErrNotFound
	}
	s, err := scanSubscriber(r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1 AND organization_id = $2`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) ListPage(ctx context.Context, orgID string, limit, offset int) ([]domain.Subscriber, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}
	out, err := r.collect(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	return out, total, nil
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) (string, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	cf, err := jsonb(s.CustomFields)
	if err != nil {
		return "", fmt.Errorf("encode custom fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, organization_id, email, custom_fields, gpg_public_key, encrypt_emails, is_active, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NOW())
	`, s.ID, s.OrganizationID, s.Email, cf, s.GPGPublicKey, s.EncryptEmails, s.IsActive)
	if isUniqueViolation(err) {
		return "", subscriber.ErrDuplicate
	}
	if err != nil {
		return "", fmt.Errorf("create subscriber: %w", err)
	}
	return s.ID, nil
}

func (r *SubscriberRepo) Update(ctx context.Context, orgID, id string, u subscriber.UpdateFields) error {
	if !validID(id) {
		return subscriber.ErrNotFound
	}
	var b setBuilder
	if u.Email != nil {
		b.add("email", *u.Email)
	}
	if u.CustomFields != nil {
		cf, err := jsonb(u.CustomFields)
		if err != nil {
			return fmt.Errorf("encode custom fields: %w", err)
		}
		b.add("custom_fields", cf)
	}
	if u.IsActive != nil {
		b.add("is_active", *u.IsActive)
	}
	if u.GPGPublicKey != nil {
		b.add("gpg_public_key", sql.NullString{String: *u.GPGPublicKey, Valid: *u.GPGPublicKey != ""})
	}
	if u.EncryptEmails != nil {
		b.add("encrypt_emails", *u.EncryptEmails)
	}
	if b.empty() {
		return nil
	}

	res, err := r.db.ExecContext(ctx, b.sql("subscribers", "id", "organization_id"), append(b.args, id, orgID)...)
	if isUniqueViolation(err) {
		return subscriber.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return subscriber.ErrNotFound
	}
	return nil
}
