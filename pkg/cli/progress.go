package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for operations that walk a set of
// evidence packs.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// PackProgress renders a single-line bar counting packs processed.
// Safe for concurrent use.
type PackProgress struct {
	mu      sync.Mutex
	total   int64
	current int64
	started time.Time
	w       io.Writer
}

// NewProgressReporter creates a pack-counting progress reporter
// writing to w, or to stdout when w is nil.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stdout
	}
	return &PackProgress{w: w}
}

// Start begins a run over total packs.
func (p *PackProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render()
}

// Update sets the number of packs processed so far.
func (p *PackProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.render()
}

// Finish completes the bar and reports the elapsed time.
func (p *PackProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total <= 0 {
		return
	}
	p.current = p.total
	p.render()
	fmt.Fprintf(p.w, " done in %s\n", time.Since(p.started).Round(time.Millisecond))
}

// Error breaks the bar line and reports how far the run got.
func (p *PackProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\nfailed after %d/%d packs: %v\n", p.current, p.total, err)
}

const progressBarWidth = 32

func (p *PackProgress) render() {
	if p.total <= 0 {
		return
	}
	filled := int(progressBarWidth * p.current / p.total)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
	fmt.Fprintf(p.w, "\r[%s] %d/%d packs", bar, p.current, p.total)
}
