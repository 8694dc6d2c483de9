package watcher

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vatsal3003/webp-batch/pkg/models"
)

const defaultDebounce = 500 * time.Millisecond

// Processor runs a single job; *reencode.Reencoder satisfies it.
type Processor interface {
	Process(job models.ImageJob) (models.JobResult, error)
}

// Watcher re-runs a job whenever its source file is created or rewritten.
type Watcher struct {
	processor Processor
	jobs      map[string]models.ImageJob
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	results   chan models.JobResult

	mu     sync.Mutex
	timers map[string]*time.Timer

	// serialises Process calls so jobs never run in parallel
	runMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWatcher(processor Processor, jobs []models.ImageJob) (*Watcher, error) {
	byPath := make(map[string]models.ImageJob, len(jobs))
	for _, job := range jobs {
		src := filepath.Clean(job.SourcePath)
		if src == filepath.Clean(job.OutputPath) {
			log.Printf("INFO not watching %s: output would overwrite the source", src)
			continue
		}
		byPath[src] = job
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		processor: processor,
		jobs:      byPath,
		watcher:   fsWatcher,
		debounce:  defaultDebounce,
		results:   make(chan models.JobResult, 100),
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}, nil
}

// Results delivers the result of every re-run. Results are dropped when
// nobody reads them and the buffer is full.
func (w *Watcher) Results() <-chan models.JobResult {
	return w.results
}

func (w *Watcher) Start() error {
	dirs := make(map[string]struct{})
	for src := range w.jobs {
		dirs[filepath.Dir(src)] = struct{}{}
	}

	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", dir, err)
		}
		log.Printf("INFO watching folder: %s", dir)
	}

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

func (w *Watcher) Stop() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for name, timer := range w.timers {
		timer.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()

	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			job, watched := w.jobs[filepath.Clean(event.Name)]
			if !watched {
				continue
			}
			w.schedule(job)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR watcher: %v", err)
		}
	}
}

// schedule runs job once writes to its source have been quiet for the
// debounce interval.
func (w *Watcher) schedule(job models.ImageJob) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.timers[job.SourcePath]; exists {
		timer.Stop()
	}
	w.timers[job.SourcePath] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, job.SourcePath)
		w.mu.Unlock()

		w.run(job)
	})
}

func (w *Watcher) run(job models.ImageJob) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	res, err := w.processor.Process(job)
	if err != nil {
		log.Printf("ERROR re-encoding %s: %v", job.SourcePath, err)
		return
	}

	select {
	case w.results <- res:
	default:
	}
}
