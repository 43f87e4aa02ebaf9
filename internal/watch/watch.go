// Package watch answers questionnaires dropped into a folder.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/pipeline"
)

// DefaultExtensions are the document types picked up from the drop folder.
var DefaultExtensions = []string{".docx", ".pdf", ".xlsx", ".txt"}

const defaultSettle = 2 * time.Second

// Runner runs one questionnaire. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, in pipeline.RunInput) (*model.RunResult, error)
}

// Options configures a Watcher.
type Options struct {
	Dir         string
	OutputDir   string
	ChatbotLink string
	Extensions  []string
	// Settle is how long a file must go without writes before it is run.
	Settle time.Duration
	// FailFast is passed through to each run.
	FailFast bool
}

// Watcher runs the pipeline for each new document in a directory. Documents
// are processed one at a time in the order they settle.
type Watcher struct {
	runner Runner
	opts   Options

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher.
func New(runner Runner, opts Options) *Watcher {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Settle <= 0 {
		opts.Settle = defaultSettle
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output_docs"
	}
	return &Watcher{runner: runner, opts: opts, timers: make(map[string]*time.Timer)}
}

// OutputPath returns the answer table path for a dropped document.
func (w *Watcher) OutputPath(docPath string) string {
	base := filepath.Base(docPath)
	return filepath.Join(w.opts.OutputDir, strings.TrimSuffix(base, filepath.Ext(base))+".csv")
}

func (w *Watcher) watched(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.opts.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Run watches until ctx is done. Errors from individual runs are logged and
// never stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer fw.Close() //nolint:errcheck

	if err := fw.Add(w.opts.Dir); err != nil {
		return model.WrapError(err, model.KindIO, "watch: add "+w.opts.Dir)
	}
	zap.L().Info("watch: watching for questionnaires",
		zap.String("dir", w.opts.Dir),
		zap.Strings("extensions", w.opts.Extensions),
	)

	runCtx, cancel := context.WithCancel(ctx)
	ready := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case path := <-ready:
				w.process(runCtx, path)
			}
		}
	}()
	defer wg.Wait()
	defer cancel()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.watched(event.Name) {
				continue
			}
			w.schedule(runCtx, event.Name, ready)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch: watcher error", zap.Error(err))
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.opts.Settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	out := w.OutputPath(path)
	log := zap.L().With(zap.String("document", path), zap.String("output", out))
	log.Info("watch: running questionnaire")

	result, err := w.runner.Run(ctx, pipeline.RunInput{
		Questionnaire: path,
		ChatbotLink:   w.opts.ChatbotLink,
		OutputPath:    out,
		FailFast:      w.opts.FailFast,
	})
	if err != nil {
		log.Error("watch: questionnaire failed", zap.Error(err))
		return
	}
	log.Info("watch: questionnaire answered",
		zap.Int("answered", result.Answered()),
		zap.Int("failed", len(result.Failures)),
	)
}
