package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/polai/polai-go/internal/rag"
)

const returnsDoc = `# Returns and Refunds

## Return Window

Items may be returned within 30 days of delivery for a full refund.

## Condition Requirements

Returned items must be unused and in their original packaging.
`

func Test_SplitSections_ByHeadings(t *testing.T) {
	t.Parallel()

	sections := SplitSections(returnsDoc)
	if len(sections) != 3 {
		t.Fatalf("got %d sections, want 3: %+v", len(sections), sections)
	}
	wantTitles := []string{"Returns and Refunds", "Return Window", "Condition Requirements"}
	for i, want := range wantTitles {
		if sections[i].Title != want {
			t.Errorf("section %d title = %q, want %q", i, sections[i].Title, want)
		}
	}
	// The heading line stays in the body.
	if !strings.HasPrefix(sections[1].Body, "## Return Window") {
		t.Fatalf("heading stripped from body: %q", sections[1].Body)
	}
}

func Test_SplitSections_PreambleAndPlainText(t *testing.T) {
	t.Parallel()

	sections := SplitSections("intro text\n\n# Heading\n\nbody")
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].Title != "Body" {
		t.Fatalf("preamble title = %q, want Body", sections[0].Title)
	}

	sections = SplitSections("just plain text with no headings")
	if len(sections) != 1 || sections[0].Title != "Body" {
		t.Fatalf("plain text sections = %+v", sections)
	}
}

func Test_ChunkText_PacksSentences(t *testing.T) {
	t.Parallel()

	text := "First sentence here. Second sentence here. Third sentence here. Fourth sentence here."
	chunks := ChunkText(text, 7, 0)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "First sentence here. Second sentence here.") {
		t.Fatalf("chunk 0 = %q", chunks[0])
	}
}

func Test_ChunkText_OverlapCarriesTail(t *testing.T) {
	t.Parallel()

	text := "One two three four five. Six seven eight nine ten. Eleven twelve thirteen fourteen fifteen."
	chunks := ChunkText(text, 10, 3)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	// The second chunk starts with the last 3 tokens of the first.
	if !strings.HasPrefix(chunks[1], "eight nine ten.") {
		t.Fatalf("chunk 1 missing overlap tail: %q", chunks[1])
	}
}

func Test_ChunkText_EmptyAndOversized(t *testing.T) {
	t.Parallel()

	if got := ChunkText("", 100, 10); len(got) != 0 {
		t.Fatalf("empty text produced %d chunks", len(got))
	}
	if got := ChunkText("   \n\n  ", 100, 10); len(got) != 0 {
		t.Fatalf("whitespace text produced %d chunks", len(got))
	}

	// A single over-long sentence still lands in one chunk.
	long := strings.Repeat("word ", 50) + "end."
	got := ChunkText(long, 10, 0)
	if len(got) == 0 {
		t.Fatal("oversized sentence produced no chunks")
	}
}

func Test_LoadDir_FiltersAndSorts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("Warranty_Policy.md", "# Warranty\n\nCovers defects.")
	write("Returns_and_Refunds.md", returnsDoc)
	write("notes.txt", "plain text notes")
	write("image.png", "not a document")

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	wantOrder := []string{"Returns_and_Refunds.md", "Warranty_Policy.md", "notes.txt"}
	for i, want := range wantOrder {
		if docs[i].Title != want {
			t.Errorf("doc %d = %q, want %q", i, docs[i].Title, want)
		}
	}
}

func Test_Prepare_StableChunkIdentity(t *testing.T) {
	t.Parallel()

	docs := []Document{{
		Title: "Returns_and_Refunds.md",
		Sections: SplitSections(returnsDoc),
	}}

	first := Prepare(docs, DefaultChunkSize, DefaultChunkOverlap)
	second := Prepare(docs, DefaultChunkSize, DefaultChunkOverlap)
	if len(first) == 0 {
		t.Fatal("no chunks prepared")
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Fatalf("chunk %d key unstable: %s vs %s", i, first[i].Key(), second[i].Key())
		}
	}
}

type fakeIndexer struct {
	chunks []rag.Chunk
}

func (f *fakeIndexer) Index(_ context.Context, chunks []rag.Chunk) (int, error) {
	f.chunks = append(f.chunks, chunks...)
	return len(chunks), nil
}

func Test_Pipeline_IngestDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Returns_and_Refunds.md"), []byte(returnsDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := &fakeIndexer{}
	p, err := NewPipeline(idx, Config{}, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	res, err := p.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Docs != 1 {
		t.Fatalf("docs = %d, want 1", res.Docs)
	}
	if res.Chunks != len(idx.chunks) {
		t.Fatalf("result chunks %d != indexed %d", res.Chunks, len(idx.chunks))
	}
	for _, ch := range idx.chunks {
		if ch.Title != "Returns_and_Refunds.md" {
			t.Fatalf("chunk title = %q", ch.Title)
		}
		if ch.Section == "" || ch.Text == "" {
			t.Fatalf("incomplete chunk: %+v", ch)
		}
	}
}

func Test_Pipeline_RequiresIndexer(t *testing.T) {
	t.Parallel()
	if _, err := NewPipeline(nil, Config{}, nil); err == nil {
		t.Fatal("expected error for nil indexer")
	}
}
