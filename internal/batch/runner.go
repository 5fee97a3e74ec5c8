package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	mimage "mockup-render/internal/image"
	"mockup-render/internal/report"
)

// ResultsFile is written to the output directory when anything was uploaded.
const ResultsFile = "imgbb_results.json"

// RenderFunc composites one design onto the mockup.
type RenderFunc func(design *image.NRGBA) (*image.NRGBA, error)

// Job is one design to render: either a local file or a remote item.
type Job struct {
	Index      int
	DesignPath string
	Item       *Item
}

// FileJobs numbers local designs from 1.
func FileJobs(paths []string) []Job {
	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = Job{Index: i + 1, DesignPath: p}
	}
	return jobs
}

// ItemJobs numbers remote items from 1.
func ItemJobs(items []Item) []Job {
	jobs := make([]Job, len(items))
	for i := range items {
		jobs[i] = Job{Index: i + 1, Item: &items[i]}
	}
	return jobs
}

// UploadRecord is one line of the results file.
type UploadRecord struct {
	Title     string `json:"title"`
	File      string `json:"file"`
	URL       string `json:"url"`
	DeleteURL string `json:"delete_url,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Summary counts what a run did.
type Summary struct {
	Rendered int
	Skipped  int
	Failed   int
	Outputs  []string
	Uploads  []UploadRecord
}

// Runner renders jobs one after another. Report and Uploader are optional;
// Fetcher is required for item jobs.
type Runner struct {
	Render   RenderFunc
	OutDir   string
	Pattern  string
	Fetcher  *Fetcher
	Uploader Uploader
	Report   *report.Session
	Verbose  bool
}

// Run processes jobs in order. A failing job is logged and counted and the
// run moves on. Cancellation is checked between jobs; the returned error is
// the context's, or a failure writing the results file.
func (r *Runner) Run(ctx context.Context, jobs []Job) (Summary, error) {
	var sum Summary
	if r.Render == nil {
		return sum, errors.New("batch runner has no render function")
	}
	if err := os.MkdirAll(r.OutDir, 0755); err != nil {
		return sum, fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sum, r.finish(&sum, err)
		}

		out, err := r.runOne(ctx, job, &sum)
		switch {
		case errors.Is(err, ErrSkipped):
			sum.Skipped++
			log.Printf("Skip %s: %v", job.name(), err)
		case err != nil:
			sum.Failed++
			log.Printf("Error rendering %s: %v", job.name(), err)
		default:
			sum.Rendered++
			sum.Outputs = append(sum.Outputs, out)
			if r.Verbose {
				fmt.Printf("Saved: %s\n", out)
			}
		}
	}
	return sum, r.finish(&sum, nil)
}

func (r *Runner) runOne(ctx context.Context, job Job, sum *Summary) (string, error) {
	designPath := job.DesignPath
	title := ""
	if job.Item != nil {
		if r.Fetcher == nil {
			return "", errors.New("no fetcher for remote item")
		}
		if job.Item.URL == "" {
			return "", fmt.Errorf("%w: item has no URL", ErrSkipped)
		}
		p, err := r.Fetcher.Fetch(ctx, *job.Item)
		if err != nil {
			return "", err
		}
		designPath = p
		title = SlugTitle(job.Item.Title)
	}
	if title == "" {
		base := filepath.Base(designPath)
		title = base[:len(base)-len(filepath.Ext(base))]
	}

	design, err := mimage.Load(designPath)
	if err != nil {
		return "", err
	}
	img, err := r.Render(design)
	if err != nil {
		return "", err
	}

	pattern := r.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	out := filepath.Join(r.OutDir, OutputFile(pattern, designPath, job.Index))
	if err := mimage.Save(img, out); err != nil {
		return "", err
	}

	imageURL := filepath.ToSlash(out)
	if r.Uploader != nil {
		up, err := r.Uploader.Upload(ctx, out)
		if err != nil {
			// The render itself succeeded; keep the local path.
			log.Printf("Upload failed for %s: %v", out, err)
		} else {
			sum.Uploads = append(sum.Uploads, UploadRecord{
				Title: title, File: out, URL: up.URL, DeleteURL: up.DeleteURL, ID: up.ID,
			})
			imageURL = up.URL
			if r.Verbose {
				fmt.Printf("Uploaded to imgbb: %s\n", up.URL)
			}
		}
	}

	if r.Report != nil {
		if err := r.Report.Write(report.Entry{Title: title, ImageURL: imageURL, Image: design}); err != nil {
			log.Printf("Report row failed for %s: %v", title, err)
		}
	}
	return out, nil
}

func (r *Runner) finish(sum *Summary, runErr error) error {
	if len(sum.Uploads) == 0 {
		return runErr
	}
	data, err := json.MarshalIndent(sum.Uploads, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(r.OutDir, ResultsFile), data, 0644)
	}
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write upload results: %w", err))
	}
	return runErr
}

func (j Job) name() string {
	if j.Item != nil {
		return j.Item.Title
	}
	return j.DesignPath
}
