package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Corpus is the set of postings a build indexes. Order is meaningful: after
// Sort the position of a posting is its row in every derived matrix.
type Corpus struct {
	Items []*JobPosting `json:"items"`
}

func New(items []*JobPosting) *Corpus {
	return &Corpus{Items: items}
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

func (c *Corpus) FindByID(id string) *JobPosting {
	for _, job := range c.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (c *Corpus) IDs() []string {
	ids := make([]string, 0, c.Len())
	for _, job := range c.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

// Sort orders postings by ID and drops duplicate IDs, keeping the first
// occurrence. Builds call it so that artifact rows are reproducible.
func (c *Corpus) Sort() {
	slices.SortStableFunc(c.Items, func(a, b *JobPosting) int {
		return strings.Compare(a.ID, b.ID)
	})
	c.Items = slices.CompactFunc(c.Items, func(a, b *JobPosting) bool {
		return a.ID == b.ID
	})
}

// Active returns the postings that are still open.
func (c *Corpus) Active() *Corpus {
	active := make([]*JobPosting, 0, c.Len())
	for _, job := range c.Items {
		if job.Active {
			active = append(active, job)
		}
	}
	return New(active)
}

func (j *JobPosting) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return j.ID
	case JobCategoryField:
		return j.CategoryID
	case JobProvinceField:
		return j.Province
	default:
		return ""
	}
}

// Exclude removes postings whose field matches one of targets and returns the
// removed IDs. Remaining postings keep their relative order.
func (c *Corpus) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	drop := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		drop[target] = struct{}{}
	}

	var excluded []string
	kept := c.Items[:0]
	for _, job := range c.Items {
		if _, ok := drop[job.GetStringField(name)]; ok {
			excluded = append(excluded, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	c.Items = kept
	return excluded
}

// ReportByCategory groups postings by category for interactive inspection.
func (c *Corpus) ReportByCategory() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range c.Items {
		key := fmt.Sprintf("%s (%s)", job.Category, job.CategoryID)
		report[key] = append(report[key], map[string]string{
			"id":       job.ID,
			"title":    job.Title,
			"company":  job.Company,
			"province": job.Province,
			"link":     job.SourceLink,
			"skills":   strings.Join(job.Skills, ", "),
		})
	}
	return report
}

func (c *Corpus) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	return file.Name(), nil
}
