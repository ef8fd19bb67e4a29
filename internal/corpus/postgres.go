package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const activePostingsQuery = `
	SELECT jp.id::text,
	       COALESCE(jp.title, ''),
	       COALESCE(c.name, ''),
	       COALESCE(jp.province, ''),
	       COALESCE(jp.city, ''),
	       COALESCE(jp.category_id::text, ''),
	       COALESCE(cat.name, ''),
	       COALESCE(jp.contract_type, ''),
	       COALESCE(jp.salary, ''),
	       COALESCE(jp.minimum_experience::text, ''),
	       COALESCE(jp.is_full_time, FALSE),
	       COALESCE(jp.is_part_time, FALSE),
	       COALESCE(jp.is_remote, FALSE),
	       COALESCE(jp.is_internship, FALSE),
	       COALESCE(jp.job_description, ''),
	       COALESCE(jp.source_link, ''),
	       jp.scraped_at,
	       COALESCE(STRING_AGG(s.name, '|'), '')
	FROM job_postings jp
	LEFT JOIN companies c ON jp.company_id = c.id
	LEFT JOIN categories cat ON jp.category_id = cat.id
	LEFT JOIN job_skill js ON jp.id = js.job_id
	LEFT JOIN skills s ON js.skill_id = s.id
	WHERE jp.is_active = TRUE
	GROUP BY jp.id, c.name, cat.name
`

// PostgresSource reads active postings from the ingestion database.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Load(ctx context.Context) (*Corpus, []Issue, error) {
	rows, err := s.pool.Query(ctx, activePostingsQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("query job postings: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		var (
			id, title, company, province, city, categoryID, category string
			contract, salary, experience, description, link, skills  string
			fullTime, partTime, remote, internship                   bool
			scrapedAt                                                *time.Time
		)
		if err := rows.Scan(&id, &title, &company, &province, &city, &categoryID, &category,
			&contract, &salary, &experience, &fullTime, &partTime, &remote, &internship,
			&description, &link, &scrapedAt, &skills); err != nil {
			return nil, nil, fmt.Errorf("scan job posting: %w", err)
		}

		record := map[string]any{
			"id":                 id,
			"title":              title,
			"company":            company,
			"province":           province,
			"city":               city,
			"category_id":        categoryID,
			"category":           category,
			"contract_type":      contract,
			"salary":             salary,
			"minimum_experience": experience,
			"is_full_time":       fullTime,
			"is_part_time":       partTime,
			"is_remote":          remote,
			"is_internship":      internship,
			"description":        description,
			"source_link":        link,
			"skills":             skills,
			"is_active":          true,
		}
		if scrapedAt != nil {
			record["posted_at"] = *scrapedAt
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read job postings: %w", err)
	}

	return DecodeRecords(records)
}
