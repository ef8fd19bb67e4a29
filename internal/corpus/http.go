package corpus

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/job-recommender"
	defaultPerPage  = 100
)

// Query narrows what the ingestion API returns.
type Query struct {
	// apiparam is the query parameter name; slices become repeated params.
	Provinces  []string `apiparam:"province"`
	Categories []string `apiparam:"category_id"`
	ActiveOnly bool     `apiparam:"active"`
	PerPage    int      `apiparam:"per_page"`
	// MaxAgeDays asks the API to drop postings older than this many days.
	MaxAgeDays int `apiparam:"max_age_days"`
}

type itemResponse struct {
	Items   []map[string]any `json:"items"`
	Found   int              `json:"found"`
	Pages   int              `json:"pages"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// HTTPSource pages through an ingestion API that returns
// {"items": [...], "page": n, "pages": m}.
type HTTPSource struct {
	URL        string
	Token      string
	Query      Query
	UserAgent  string
	HTTPClient *http.Client
	logger     *zap.Logger
}

func NewHTTPSource(endpoint, token string, q Query, logger *zap.Logger) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{
		URL:       endpoint,
		Token:     token,
		Query:     q,
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (s *HTTPSource) Name() string { return "http:" + s.URL }

func (s *HTTPSource) Load(ctx context.Context) (*Corpus, []Issue, error) {
	items, err := s.GetItems(ctx)
	if err != nil {
		return nil, nil, err
	}
	return DecodeRecords(items)
}

// GetItems makes GET requests to the ingestion API and returns items from all pages.
func (s *HTTPSource) GetItems(ctx context.Context) ([]map[string]any, error) {
	if s.Query.PerPage == 0 {
		s.Query.PerPage = defaultPerPage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req = s.setHeaders(req)
	req.URL.RawQuery = buildParams(&s.Query).Encode()

	response, err := s.fetch(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("got response from ingestion api", zap.Int("pages", response.Pages), zap.Int("found", response.Found))

	items := append([]map[string]any(nil), response.Items...)

	for response.Page < (response.Pages - 1) {
		s.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))

		response, err = s.fetch(addPage(req, response.Page+1))
		if err != nil {
			return nil, err
		}

		items = append(items, response.Items...)
	}

	return items, nil
}

func (s *HTTPSource) fetch(req *http.Request) (*itemResponse, error) {
	s.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var response itemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *HTTPSource) setHeaders(req *http.Request) *http.Request {
	if s.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// addPage adds page parameter to request URL.
func addPage(req *http.Request, page int) *http.Request {
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	return req
}

func buildParams(params *Query) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("apiparam")
		if key == "" {
			continue
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case []string:
			for _, item := range v {
				q.Add(key, item)
			}
		case bool:
			if v {
				q.Set(key, "true")
			}
		case int:
			if v != 0 {
				q.Set(key, strconv.Itoa(v))
			}
		}
	}

	return q
}
