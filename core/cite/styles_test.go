package cite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quirelab/quire/core/cite/stylecache"
	qerrors "github.com/quirelab/quire/core/errors"
)

func TestStylesEmbeddedDefaults(t *testing.T) {
	s := NewStyles(nil)
	for _, id := range []string{"apa", "chicago-author-date", "ieee"} {
		xml, err := s.Get(context.Background(), id)
		if err != nil {
			t.Errorf("embedded style %s: %v", id, err)
			continue
		}
		if !strings.Contains(string(xml), "citation-format") {
			t.Errorf("embedded style %s looks wrong", id)
		}
	}
}

func TestStylesFetchOncePerID(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewStyles(nil)
	url := srv.URL + "/styles/vancouver"

	if _, err := s.Get(context.Background(), url); err == nil {
		t.Fatal("404 fetch reported success")
	}
	if _, err := s.Get(context.Background(), url); err == nil {
		t.Fatal("second lookup reported success")
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestStylesFetchAndCache(t *testing.T) {
	const styleXML = `<style class="in-text"><info><category citation-format="numeric"/></info></style>`
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(styleXML))
	}))
	defer srv.Close()

	cache, err := stylecache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	url := srv.URL + "/styles/vancouver"
	s := NewStyles(cache)
	xml, err := s.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(xml) != styleXML {
		t.Errorf("fetched %q", xml)
	}

	// A fresh loader on the same cache never touches the network.
	s2 := NewStyles(cache)
	xml, err = s2.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("cached lookup: %v", err)
	}
	if string(xml) != styleXML {
		t.Errorf("cached %q", xml)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestStylesNotFoundUnwraps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	s := NewStyles(nil)
	_, err := s.Get(context.Background(), srv.URL+"/styles/nope")
	if err == nil {
		t.Fatal("missing style reported success")
	}
	var fe *qerrors.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error is %T, want *FetchError", err)
	}
	if !errors.Is(err, qerrors.ErrNotFound) {
		t.Error("404 fetch does not unwrap to ErrNotFound")
	}
}

func TestFromStyle(t *testing.T) {
	t.Run("numeric", func(t *testing.T) {
		xml, _ := NewStyles(nil).Get(context.Background(), "ieee")
		p, err := FromStyle(xml)
		if err != nil {
			t.Fatalf("FromStyle: %v", err)
		}
		if _, ok := p.(*NumericProcessor); !ok {
			t.Errorf("processor is %T, want *NumericProcessor", p)
		}
	})

	t.Run("author-date", func(t *testing.T) {
		xml, _ := NewStyles(nil).Get(context.Background(), "apa")
		p, err := FromStyle(xml)
		if err != nil {
			t.Fatalf("FromStyle: %v", err)
		}
		if _, ok := p.(*AuthorYearProcessor); !ok {
			t.Errorf("processor is %T, want *AuthorYearProcessor", p)
		}
	})
}
