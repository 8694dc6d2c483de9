package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const OutputExt = ".webp"

type ImageJob struct {
	JobID      string `json:"job_id"`
	SourcePath string `json:"source_path" validate:"required"`
	OutputPath string `json:"output_path" validate:"required"`
	Width      int    `json:"width" validate:"gte=0"`
	Height     int    `json:"height" validate:"gte=0"`
	Quality    int    `json:"quality" validate:"gte=0,lte=100"`
	Lossless   bool   `json:"lossless,omitempty"`
}

// Resizes reports whether the job asks for new dimensions. A zero side is
// derived from the source aspect ratio.
func (j ImageJob) Resizes() bool {
	return j.Width > 0 || j.Height > 0
}

type JobStatus string

const (
	StatusConverted JobStatus = "converted"
	StatusSkipped   JobStatus = "skipped"
)

type JobResult struct {
	JobID      string    `json:"job_id"`
	SourcePath string    `json:"source_path"`
	OutputPath string    `json:"output_path"`
	Status     JobStatus `json:"status"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Size       int64     `json:"size,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewImageJob(sourcePath string, width, height, quality int) ImageJob {
	return ImageJob{
		JobID:      uuid.New().String(),
		SourcePath: sourcePath,
		OutputPath: OutputPath(sourcePath),
		Width:      width,
		Height:     height,
		Quality:    quality,
	}
}

// OutputPath swaps the extension of sourcePath for .webp, keeping the
// directory and base name.
func OutputPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + OutputExt
}

var validate = validator.New()

func (j ImageJob) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("invalid job %s: %w", j.SourcePath, err)
	}
	return nil
}
