package list

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/customfield"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s, already normalized, has the shape of an
// email address.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ImportCSV spools src to a temp file and imports it into the organization
// owning listID.
func (s *Service) ImportCSV(ctx context.Context, listID string, src io.Reader) (*domain.ImportSummary, error) {
	return s.ImportCSVWithID(ctx, uuid.New().String(), listID, src)
}

// ImportCSVWithID is ImportCSV with a caller-chosen import id, so progress
// can be polled while the import runs.
func (s *Service) ImportCSVWithID(ctx context.Context, importID, listID string, src io.Reader) (*domain.ImportSummary, error) {
	l, err := s.resolveOrg(ctx, listID)
	if err != nil {
		return nil, err
	}

	path, err := s.spool(importID, src)
	if err != nil {
		s.finish(ctx, importID, domain.ImportFailed, err, 0)
		return nil, err
	}
	defer s.removeTemp(path)

	s.startProgress(ctx, importID, l)
	return s.importFile(ctx, importID, l, path)
}

// ImportFile imports an already spooled CSV file. The file is removed when
// the call returns, whatever the outcome.
func (s *Service) ImportFile(ctx context.Context, importID, listID, path string) (*domain.ImportSummary, error) {
	defer s.removeTemp(path)

	l, err := s.resolveOrg(ctx, listID)
	if err != nil {
		return nil, err
	}
	s.startProgress(ctx, importID, l)
	return s.importFile(ctx, importID, l, path)
}

// startProgress records an import as processing. Each entry point calls it
// once, before importFile.
func (s *Service) startProgress(ctx context.Context, importID string, l *domain.List) {
	if err := s.progress.Start(ctx, domain.ImportProgress{
		ImportID: importID,
		ListID:   l.ID,
		Status:   domain.ImportProcessing,
	}); err != nil {
		logger.Warn("import progress start failed", "import_id", importID, "error", err)
	}
}

// ImportAsync spools src, then imports it in the background. The returned
// import id can be polled with Progress. Background imports are detached
// from ctx cancellation; Wait blocks until they are done.
func (s *Service) ImportAsync(ctx context.Context, listID string, src io.Reader) (string, error) {
	l, err := s.resolveOrg(ctx, listID)
	if err != nil {
		return "", err
	}
	importID := uuid.New().String()
	path, err := s.spool(importID, src)
	if err != nil {
		return "", err
	}
	s.startProgress(ctx, importID, l)

	bg := context.WithoutCancel(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.removeTemp(path)
		_, _ = s.importFile(bg, importID, l, path)
	}()
	return importID, nil
}

// Wait blocks until background imports finish.
func (s *Service) Wait() { s.bg.Wait() }

// TempPath returns where an upload with importID is spooled.
func (s *Service) TempPath(importID string) string {
	return filepath.Join(s.cfg.TempDir, importID+".csv")
}

func (s *Service) spool(importID string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := s.TempPath(importID)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		s.removeTemp(path)
		return "", fmt.Errorf("%w: spool upload: %v", ErrIngestion, errors.Join(copyErr, closeErr))
	}
	return path, nil
}

func (s *Service) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove import temp file", "path", path, "error", err)
	}
}

// importState accumulates the single pass over the file.
type importState struct {
	seen        map[string]struct{}
	order       []string
	candidates  []domain.Subscriber
	validRows   int
	invalidRows int
	rowsRead    int64
	errors      []string
}

func (s *Service) importFile(ctx context.Context, importID string, l *domain.List, path string) (*domain.ImportSummary, error) {
	orgID := l.OrgID()
	st, err := s.scan(ctx, importID, orgID, l.CustomFields, path)
	if err != nil {
		s.finish(ctx, importID, domain.ImportFailed, err, 0)
		return nil, err
	}

	existing, err := s.existing(ctx, orgID, st.order)
	if err != nil {
		s.finish(ctx, importID, domain.ImportFailed, err, 0)
		return nil, fmt.Errorf("lookup existing subscribers: %w", err)
	}

	// Second pass: drop anything already stored and guard against
	// duplicates that slipped past the seen-set.
	final := make([]domain.Subscriber, 0, len(st.candidates))
	picked := make(map[string]struct{}, len(st.candidates))
	for _, sub := range st.candidates {
		if _, ok := existing[sub.Email]; ok {
			continue
		}
		if _, ok := picked[sub.Email]; ok {
			continue
		}
		picked[sub.Email] = struct{}{}
		final = append(final, sub)
	}

	added := 0
	for start := 0; start < len(final); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(final))
		n, err := s.subs.InsertSubscribers(ctx, final[start:end])
		if err != nil {
			s.finish(ctx, importID, domain.ImportFailed, err, int64(added))
			return nil, fmt.Errorf("insert subscribers: %w", err)
		}
		added += n
		if err := s.progress.Update(ctx, importID, st.rowsRead, int64(added)); err != nil {
			logger.Warn("import progress update failed", "import_id", importID, "error", err)
		}
	}

	sum := &domain.ImportSummary{
		ImportID:         importID,
		TotalCSVRows:     len(st.seen),
		AlreadyExisted:   len(existing),
		NewlyAdded:       added,
		Skipped:          st.validRows - added,
		InvalidRows:      st.invalidRows,
		ValidationErrors: st.errors,
	}
	sum.Message = fmt.Sprintf("Imported %d new subscribers. Skipped %d duplicates.", sum.NewlyAdded, sum.Skipped)
	if n := len(st.errors); n > 0 {
		sum.Message += fmt.Sprintf(" %d validation errors.", n)
	}

	metrics.ImportRows.WithLabelValues("added").Add(float64(added))
	metrics.ImportRows.WithLabelValues("invalid").Add(float64(st.invalidRows))
	metrics.ImportRows.WithLabelValues("rejected").Add(float64(len(st.errors)))
	s.finish(ctx, importID, domain.ImportCompleted, nil, int64(added))

	logger.Info("csv import completed",
		"import_id", importID,
		"list_id", l.ID,
		"total", sum.TotalCSVRows,
		"existing", sum.AlreadyExisted,
		"added", sum.NewlyAdded,
		"invalid", sum.InvalidRows,
		"rejected", len(st.errors),
	)
	return sum, nil
}

// scan makes the single streaming pass over the file.
func (s *Service) scan(ctx context.Context, importID, orgID string, schema domain.CustomFieldSchema, path string) (*importState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open upload: %v", ErrIngestion, err)
	}
	defer f.Close()

	rows, err := NewRowReader(f)
	if err != nil {
		return nil, err
	}

	st := &importState{seen: make(map[string]struct{})}
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		st.rowsRead++

		if st.rowsRead%int64(s.cfg.BatchSize) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.progress.Update(ctx, importID, st.rowsRead, 0); err != nil {
				logger.Warn("import progress update failed", "import_id", importID, "error", err)
			}
		}

		email := domain.NormalizeEmail(row.Email)
		if !ValidEmail(email) {
			st.invalidRows++
			continue
		}
		st.validRows++
		if _, dup := st.seen[email]; dup {
			continue
		}
		st.seen[email] = struct{}{}
		st.order = append(st.order, email)

		fields := make(map[string]any, len(row.Fields))
		for k, v := range row.Fields {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			fields[k] = v
		}

		if len(schema) > 0 {
			res := customfield.ValidateMode(schema, fields, customfield.Textual)
			if !res.Valid {
				st.errors = append(st.errors, fmt.Sprintf("Row with email %s: %s", email, strings.Join(res.Errors, ", ")))
				continue
			}
		}

		st.candidates = append(st.candidates, domain.Subscriber{
			ID:             uuid.New().String(),
			OrganizationID: orgID,
			Email:          email,
			CustomFields:   fields,
			IsActive:       true,
		})
	}
	return st, nil
}

// existing looks up stored emails in chunks of BatchSize.
func (s *Service) existing(ctx context.Context, orgID string, emails []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for start := 0; start < len(emails); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(emails))
		found, err := s.subs.ExistingEmails(ctx, orgID, emails[start:end])
		if err != nil {
			return nil, err
		}
		for e := range found {
			out[e] = struct{}{}
		}
	}
	return out, nil
}

func (s *Service) finish(ctx context.Context, importID string, status domain.ImportStatus, cause error, added int64) {
	metrics.ImportsTotal.WithLabelValues(string(status)).Inc()
	msg := ""
	if cause != nil {
		msg = cause.Error()
		logger.Error("csv import failed", "import_id", importID, "error", cause)
	}
	// Progress is best effort and must survive a cancelled request.
	if err := s.progress.Finish(context.WithoutCancel(ctx), importID, status, msg, added); err != nil {
		logger.Warn("import progress finish failed", "import_id", importID, "error", err)
	}
}
