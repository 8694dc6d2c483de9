package reencode

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/vatsal3003/webp-batch/pkg/models"
)

const webpMIME = "image/webp"

type Reencoder struct {
	logger *log.Logger
}

func NewReencoder(logger *log.Logger) *Reencoder {
	if logger == nil {
		logger = log.Default()
	}
	return &Reencoder{
		logger: logger,
	}
}

// Process converts a single job. A missing source is reported and skipped
// with a nil error; anything else that goes wrong is returned.
func (r *Reencoder) Process(job models.ImageJob) (models.JobResult, error) {
	result := models.JobResult{
		JobID:      job.JobID,
		SourcePath: job.SourcePath,
		OutputPath: job.OutputPath,
	}

	if err := job.Validate(); err != nil {
		return result, err
	}

	src, err := decode(job.SourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Printf("File not found: %s", job.SourcePath)
		result.Status = models.StatusSkipped
		result.FinishedAt = time.Now()
		return result, nil
	}
	if err != nil {
		return result, err
	}

	dst := src
	if job.Resizes() {
		dst = imaging.Resize(src, job.Width, job.Height, imaging.Lanczos)
	}

	size, err := encode(dst, job)
	if err != nil {
		return result, err
	}

	bounds := dst.Bounds()
	result.Status = models.StatusConverted
	result.Width = bounds.Dx()
	result.Height = bounds.Dy()
	result.Size = size
	result.FinishedAt = time.Now()

	r.logger.Printf("Converted %s to %s (%dx%d, %.2f KB)",
		filepath.Base(job.SourcePath), filepath.Base(job.OutputPath),
		result.Width, result.Height, float64(size)/1024)

	return result, nil
}

// ProcessJob adapts Process to the queue consumer's handler signature.
func (r *Reencoder) ProcessJob(job models.ImageJob) error {
	_, err := r.Process(job)
	return err
}

// RunBatch processes jobs in order. It stops at the first failing job and
// returns the results collected up to that point.
func (r *Reencoder) RunBatch(jobs []models.ImageJob) ([]models.JobResult, error) {
	results := make([]models.JobResult, 0, len(jobs))
	for _, job := range jobs {
		res, err := r.Process(job)
		if err != nil {
			return results, fmt.Errorf("job %s: %w", job.JobID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// encode writes img next to the final output and renames it into place, so
// a failed encode never leaves a truncated file behind.
func encode(img image.Image, job models.ImageJob) (int64, error) {
	dir := filepath.Dir(job.OutputPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(job.OutputPath)+".*")
	if err != nil {
		return 0, fmt.Errorf("failed to create output file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	err = webp.Encode(tmp, img, &webp.Options{
		Lossless: job.Lossless,
		Quality:  float32(job.Quality),
	})
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to encode webp %s: %w", job.OutputPath, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", job.OutputPath, err)
	}

	mtype, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect %s: %w", tmpPath, err)
	}
	if !mtype.Is(webpMIME) {
		return 0, fmt.Errorf("encoded %s has type %s, want %s", job.OutputPath, mtype.String(), webpMIME)
	}

	if err := os.Rename(tmpPath, job.OutputPath); err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", job.OutputPath, err)
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", job.OutputPath, err)
	}
	return info.Size(), nil
}
