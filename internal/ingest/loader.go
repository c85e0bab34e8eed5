// Package ingest loads JSONL grant corpora into the record store and
// builds the keyword and vector indices, with progress reporting,
// resumable checkpoints, and single-flight locking.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/grantscout/grantscout/internal/store"
)

// maxLineBytes bounds a single corpus line. Abstracts run a few KB;
// 4MB leaves generous headroom without letting a corrupt file OOM us.
const maxLineBytes = 4 * 1024 * 1024

// corpusLine is one line of the JSONL corpus: a full record plus the
// optional contact columns, which are stored separately under the
// contacts access grant.
type corpusLine struct {
	store.Record
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
}

// LoadResult is the validated content of a corpus file.
type LoadResult struct {
	Records  []*store.Record
	Contacts []*store.Contact

	// Lines is the number of non-blank lines read.
	Lines int

	// Skipped counts malformed or invalid lines that were dropped.
	Skipped int
}

// ProgressFunc receives loader progress: the current line number and
// the award ID just parsed (empty for a skipped line).
type ProgressFunc func(line int, recordID string)

// Loader reads a JSONL corpus, validating each line against the record
// schema. Malformed lines are logged and skipped rather than failing
// the run; a later line with a duplicate award ID replaces the earlier
// one, matching upstream export behavior where corrections are appended.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New()}
}

// Load reads the corpus at path. It returns an error only for I/O
// failures or a cancelled context; bad lines are counted in Skipped.
func (l *Loader) Load(ctx context.Context, path string, progress ProgressFunc) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	result := &LoadResult{}

	// Keep-last dedup: index of each ID in the output slices.
	recordIdx := make(map[string]int)
	contactIdx := make(map[string]int)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		result.Lines++

		var cl corpusLine
		if err := json.Unmarshal(line, &cl); err != nil {
			slog.Warn("corpus_line_malformed",
				slog.Int("line", lineNo),
				slog.String("error", err.Error()))
			result.Skipped++
			if progress != nil {
				progress(lineNo, "")
			}
			continue
		}

		if err := l.validate.Struct(&cl.Record); err != nil {
			slog.Warn("corpus_line_invalid",
				slog.Int("line", lineNo),
				slog.String("id", cl.ID),
				slog.String("error", validationSummary(err)))
			result.Skipped++
			if progress != nil {
				progress(lineNo, "")
			}
			continue
		}

		rec := cl.Record
		if idx, seen := recordIdx[rec.ID]; seen {
			result.Records[idx] = &rec
		} else {
			recordIdx[rec.ID] = len(result.Records)
			result.Records = append(result.Records, &rec)
		}

		if cl.ContactName != "" || cl.ContactEmail != "" {
			contact := &store.Contact{
				RecordID: rec.ID,
				Name:     cl.ContactName,
				Email:    cl.ContactEmail,
			}
			if idx, seen := contactIdx[rec.ID]; seen {
				result.Contacts[idx] = contact
			} else {
				contactIdx[rec.ID] = len(result.Contacts)
				result.Contacts = append(result.Contacts, contact)
			}
		}

		if progress != nil {
			progress(lineNo, rec.ID)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus at line %d: %w", lineNo+1, err)
	}

	slog.Info("corpus_loaded",
		slog.String("path", path),
		slog.Int("records", len(result.Records)),
		slog.Int("contacts", len(result.Contacts)),
		slog.Int("skipped", result.Skipped))

	return result, nil
}

// validationSummary condenses validator errors to the first failing
// field and constraint, which is what the warn log needs.
func validationSummary(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %s", fe.Namespace(), fe.Tag())
	}
	return err.Error()
}
