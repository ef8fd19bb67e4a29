package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/job-recommender/internal/corpus"
)

const (
	profileQuery = `
		SELECT user_id::text,
		       COALESCE(professional_title, ''),
		       COALESCE(experience_level, 0),
		       COALESCE(wants_full_time, FALSE),
		       COALESCE(wants_part_time, FALSE),
		       COALESCE(wants_remote, FALSE),
		       COALESCE(wants_onsite, FALSE),
		       COALESCE(wants_internship, FALSE),
		       COALESCE(preferred_provinces, ''),
		       COALESCE(preferred_category_id::text, ''),
		       expected_salary,
		       updated_at
		FROM user_profiles`
	skillsQuery = `
		SELECT s.name FROM skills s
		JOIN user_skills us ON s.id = us.skill_id
		WHERE us.user_id::text = $1
		ORDER BY s.name`
	workQuery = `
		SELECT COALESCE(job_title, ''), COALESCE(company_name, ''), COALESCE(description, '')
		FROM work_experiences
		WHERE user_id::text = $1`
)

// PostgresStore reads profiles from the account database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*UserProfile, error) {
	row := s.pool.QueryRow(ctx, profileQuery+" WHERE user_id::text = $1", id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %s: %w", id, err)
	}
	if err := s.fill(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*UserProfile, error) {
	rows, err := s.pool.Query(ctx, profileQuery+" ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}

	var profiles []*UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	for _, p := range profiles {
		if err := s.fill(ctx, p); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func scanProfile(row pgx.Row) (*UserProfile, error) {
	var (
		p          UserProfile
		years      int
		provinces  string
		categoryID string
		salary     *int64
		updatedAt  *time.Time
	)
	if err := row.Scan(&p.ID, &p.Title, &years,
		&p.Preferences.FullTime, &p.Preferences.PartTime, &p.Preferences.Remote,
		&p.Preferences.Onsite, &p.Preferences.Internship,
		&provinces, &categoryID, &salary, &updatedAt); err != nil {
		return nil, err
	}

	p.Experience = corpus.BandForYears(years)
	p.Provinces = corpus.SplitList(provinces)
	if categoryID = strings.TrimSpace(categoryID); categoryID != "" {
		p.Categories = []string{categoryID}
	}
	p.ExpectedSalary = salary
	if updatedAt != nil {
		p.UpdatedAt = updatedAt.UTC()
	}
	return &p, nil
}

func (s *PostgresStore) fill(ctx context.Context, p *UserProfile) error {
	rows, err := s.pool.Query(ctx, skillsQuery, p.ID)
	if err != nil {
		return fmt.Errorf("query skills for %s: %w", p.ID, err)
	}
	skills, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("read skills for %s: %w", p.ID, err)
	}
	p.Skills = skills

	rows, err = s.pool.Query(ctx, workQuery, p.ID)
	if err != nil {
		return fmt.Errorf("query work history for %s: %w", p.ID, err)
	}
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (WorkExperience, error) {
		var w WorkExperience
		err := row.Scan(&w.Title, &w.Company, &w.Description)
		return w, err
	})
	if err != nil {
		return fmt.Errorf("read work history for %s: %w", p.ID, err)
	}
	p.WorkHistory = history
	return nil
}
