package convert

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/quirelab/quire/core/doc"
)

var testTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

const testBibliography = `@article{doe2019,
  author = {Doe, Jane},
  title = {On Testing},
  journal = {Journal of Results},
  year = {2019},
  zoterokey = {ABCD1234},
  zoterouri = {http://zotero.org/users/1/items/ABCD1234},
}`

func TestExportProducesPackage(t *testing.T) {
	source := "A paragraph with **bold** text.\n"

	result, err := Export([]byte(source), Options{Timestamp: testTime})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(result.Package, []byte("PK")) {
		t.Error("result is not a zip archive")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	source := "---\nauthor: Reviewer\n---\n\n" +
		"# Findings\n\n" +
		"The method {--was--}{++is++} sound [@doe2019, p. 12].\n"

	exported, err := Export([]byte(source), Options{
		Bibliography: []byte(testBibliography),
		Timestamp:    testTime,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	imported, err := Import(exported.Package, Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	// An adjacent deletion and insertion encode to the same run
	// sequence as a substitution, so the import side recovers the
	// merged form.
	markup := string(imported.Markup)
	for _, want := range []string{
		"# Findings",
		"{~~was~>is~~}",
		"[@doe2019, p. 12]",
	} {
		if !strings.Contains(markup, want) {
			t.Errorf("imported markup lacks %q:\n%s", want, markup)
		}
	}

	bibOut := string(imported.Bibliography)
	for _, want := range []string{
		"@article{doe2019,",
		"Doe, Jane",
		"zoterokey = {ABCD1234}",
	} {
		if !strings.Contains(bibOut, want) {
			t.Errorf("imported bibliography lacks %q:\n%s", want, bibOut)
		}
	}
}

func TestExportMissingCitationWarns(t *testing.T) {
	source := "As shown by [@ghost].\n"

	result, err := Export([]byte(source), Options{Timestamp: testTime})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	found := false
	for _, w := range result.Warnings {
		if w.Code == doc.WarnMissingKey {
			found = true
		}
	}
	if !found {
		t.Errorf("no missing-key warning in %v", result.Warnings)
	}
}

func TestExportMalformedBibliographyDegradesToWarning(t *testing.T) {
	source := "Cited [@doe2019].\n"
	badBib := "@article{doe2019,\n  author = {Doe, Jane},\n  year = {2019},\n}\n@article{broken"

	result, err := Export([]byte(source), Options{
		Bibliography: []byte(badBib),
		Timestamp:    testTime,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("malformed record produced no warning")
	}
}

func TestImportWithoutCitationsHasNoBibliography(t *testing.T) {
	exported, err := Export([]byte("Just prose.\n"), Options{Timestamp: testTime})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	imported, err := Import(exported.Package, Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.Bibliography != nil {
		t.Errorf("bibliography = %q, want none", imported.Bibliography)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	if _, err := Import([]byte("not a package"), Options{}); err == nil {
		t.Fatal("garbage input did not error")
	}
}
