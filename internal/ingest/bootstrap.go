package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const downloadTimeout = 60 * time.Second

// fallbackGuideline is a condensed NG12 recommendation summary used when
// the guideline PDF is absent and the download fails. It keeps the system
// usable offline with real referral criteria.
const fallbackGuideline = `# Suspected cancer: recognition and referral (NG12)

## Lung cancer

Refer people using a suspected cancer pathway referral for lung cancer if
they have chest X-ray findings that suggest lung cancer, or are aged 40
and over with unexplained haemoptysis.

Offer an urgent chest X-ray, to be performed within 2 weeks, to assess for
lung cancer in people aged 40 and over if they have 2 or more unexplained
symptoms of cough, fatigue, shortness of breath, chest pain, weight loss
or appetite loss, or if they have ever smoked and have 1 or more of these
symptoms.

---

## Colorectal cancer

Refer adults using a suspected cancer pathway referral for colorectal
cancer if they are aged 40 and over with unexplained weight loss and
abdominal pain, aged 50 and over with unexplained rectal bleeding, or
aged 60 and over with iron-deficiency anaemia or changes in their bowel
habit.

Consider a suspected cancer pathway referral in adults with a rectal or
abdominal mass.

---

## Upper gastrointestinal cancer

Offer urgent direct access upper gastrointestinal endoscopy, to be
performed within 2 weeks, to assess for oesophageal cancer in people with
dysphagia, or aged 55 and over with weight loss and upper abdominal pain,
reflux or dyspepsia.

## Breast cancer

Refer people using a suspected cancer pathway referral for breast cancer
if they are aged 30 and over and have an unexplained breast lump with or
without pain, or aged 50 and over with discharge, retraction or other
changes of concern in one nipple only.
`

// fetchGuideline returns a local path to the guideline document. An
// existing file at path wins. Otherwise the document is downloaded from
// url, and if that fails a bundled recommendation summary is written next
// to path so ingestion can still proceed.
func fetchGuideline(ctx context.Context, path, url string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ingest: create source directory: %w", err)
	}

	if err := download(ctx, path, url); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Guideline download failed, using bundled summary")
		fallback := strings.TrimSuffix(path, filepath.Ext(path)) + "_fallback.md"
		if werr := os.WriteFile(fallback, []byte(fallbackGuideline), 0o644); werr != nil {
			return "", fmt.Errorf("ingest: write fallback guideline: %w", werr)
		}
		return fallback, nil
	}
	return path, nil
}

func download(ctx context.Context, path, url string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// EnsureIndexed bootstraps the index on startup. A populated index is
// left alone. An empty one is filled from the document at path, fetching
// it from url first when the file is missing.
func (ing *Ingestor) EnsureIndexed(ctx context.Context, path, url string) (Report, error) {
	if n := ing.index.Count(); n > 0 {
		log.Debug().Int("chunks", n).Msg("Index already populated, skipping bootstrap")
		return Report{Indexed: 0}, nil
	}

	source, err := fetchGuideline(ctx, path, url)
	if err != nil {
		return Report{}, err
	}
	return ing.IngestFile(ctx, source)
}
