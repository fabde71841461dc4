package arxivimpl

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/orgball2608/xhs-likes-manager/internal/arxiv"
	"github.com/orgball2608/xhs-likes-manager/internal/ratelimit"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/orgball2608/xhs-likes-manager/pkg/retry"
	"go.uber.org/fx"
)

const maxBodySize = 4 << 20

var (
	absIDPattern  = regexp.MustCompile(`/abs/(.+?)(?:v\d+)?$`)
	spacesPattern = regexp.MustCompile(`\s+`)
)

type Opts struct {
	fx.In
	Config *config.Config
	Logger logger.Logger
}

// Client talks to the arXiv Atom search API. Every HTTP attempt, retries
// included, first waits on the gate.
type Client struct {
	apiURL string
	http   *http.Client
	gate   *ratelimit.Gate
	retry  retry.Policy
	logger logger.Logger
}

var _ arxiv.Client = (*Client)(nil)

func New(opts Opts) *Client {
	pe := opts.Config.PaperExtraction
	return NewClient(
		pe.APIURL,
		&http.Client{Timeout: pe.RequestTimeout},
		ratelimit.NewGate(pe.MinRequestDelay),
		opts.Logger,
	)
}

func NewClient(apiURL string, httpClient *http.Client, gate *ratelimit.Gate, log logger.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		http:   httpClient,
		gate:   gate,
		retry:  retry.Lookup(),
		logger: log.WithComponent("ArxivClient"),
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	ID    string `xml:"http://www.w3.org/2005/Atom id"`
	Title string `xml:"http://www.w3.org/2005/Atom title"`
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" || maxResults <= 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("sortBy", "relevance")
	target := c.apiURL + "?" + q.Encode()

	var body []byte
	attempt := func() error {
		if err := c.gate.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		b, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	if err := retry.Do(ctx, c.logger, "ArxivSearch", c.retry, attempt); err != nil {
		return nil, fmt.Errorf("%w: %v", arxiv.ErrLookup, err)
	}

	papers, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", arxiv.ErrLookup, err)
	}
	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}
	c.logger.Debug("arXiv search done", "query", query, "results", len(papers))
	return papers, nil
}

type statusError struct {
	code int
}

func (e statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", "xhs-likes-manager (+https://arxiv.org/help/api)")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := statusError{code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, serr
		}
		return nil, retry.Permanent(serr)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

func parseFeed(body []byte) ([]arxiv.Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	papers := make([]arxiv.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		m := absIDPattern.FindStringSubmatch(strings.TrimSpace(e.ID))
		if m == nil {
			continue
		}
		papers = append(papers, arxiv.Paper{
			ID:    m[1],
			Title: strings.TrimSpace(spacesPattern.ReplaceAllString(e.Title, " ")),
		})
	}
	return papers, nil
}
