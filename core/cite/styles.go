package cite

import (
	"context"
	"embed"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"

	qerrors "github.com/quirelab/quire/core/errors"
	"github.com/quirelab/quire/core/cite/stylecache"
)

//go:embed styles/*.csl
var embeddedStyles embed.FS

// Styles resolves a CSL style id to its XML definition: bundled
// defaults first, then the persistent cache, then a single HTTP fetch.
// A fetch is attempted at most once per id per process; failures are
// recorded so later lookups fail fast without the network.
type Styles struct {
	cache  *stylecache.Cache
	client *http.Client

	mu        sync.Mutex
	attempted map[string]bool
}

// NewStyles returns a loader. cache may be nil, in which case fetched
// styles are not persisted.
func NewStyles(cache *stylecache.Cache) *Styles {
	return &Styles{
		cache: cache,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempted: make(map[string]bool),
	}
}

// Get resolves a style id or URL to CSL XML.
func (s *Styles) Get(ctx context.Context, styleID string) ([]byte, error) {
	id := strings.ToLower(strings.TrimSpace(styleID))
	if id == "" {
		return nil, &qerrors.FetchError{StyleID: styleID, Message: "empty style id"}
	}

	if xml, err := embeddedStyles.ReadFile("styles/" + id + ".csl"); err == nil {
		return xml, nil
	}

	if s.cache != nil {
		if xml, ok, err := s.cache.Get(id); err == nil && ok {
			return xml, nil
		}
	}

	s.mu.Lock()
	already := s.attempted[id]
	s.attempted[id] = true
	s.mu.Unlock()
	if already {
		return nil, &qerrors.FetchError{StyleID: styleID, Message: "style fetch already failed this run"}
	}

	xml, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		// Persist best-effort; a failed write only costs a refetch.
		_ = s.cache.Put(id, xml)
	}
	return xml, nil
}

func (s *Styles) fetch(ctx context.Context, id string) ([]byte, error) {
	url := id
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://www.zotero.org/styles/" + id
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &qerrors.FetchError{StyleID: id, Message: "invalid style URL", Err: err}
	}
	req.Header.Set("User-Agent", "quire/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &qerrors.FetchError{StyleID: id, Message: "style fetch failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &qerrors.FetchError{StyleID: id, Message: "style not found", Err: qerrors.ErrNotFound}
	}
	if resp.StatusCode >= 400 {
		return nil, &qerrors.FetchError{StyleID: id, Message: "style fetch failed: " + resp.Status}
	}

	xml, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &qerrors.FetchError{StyleID: id, Message: "reading style response", Err: err}
	}
	return xml, nil
}

// FromStyle builds a processor from CSL XML by its declared citation
// format: numeric styles get the NumericProcessor, everything else the
// author-year default.
func FromStyle(xml []byte) (Processor, error) {
	root, err := xmlquery.Parse(strings.NewReader(string(xml)))
	if err != nil {
		return nil, &qerrors.ParseError{Format: "csl", Message: "malformed style XML", Err: err}
	}
	category := xmlquery.FindOne(root, "//category[@citation-format]")
	if category != nil && category.SelectAttr("citation-format") == "numeric" {
		return NewNumericProcessor(), nil
	}
	return NewAuthorYearProcessor(), nil
}
