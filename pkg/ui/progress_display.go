package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single updating progress line for a collection run
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	chain       string
	expected    int
	unique      int
	attempt     int
	maxAttempts int
	failures    int
	startTime   time.Time
	isDebug     bool
}

// NewProgressDisplay creates a new progress display.
// In debug mode each page gets its own line instead of redrawing one line.
func NewProgressDisplay(chain string, expected int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       Output,
		chain:     chain,
		expected:  expected,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// SetUniqueCount sets the starting count when resuming
func (p *ProgressDisplay) SetUniqueCount(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unique = count
}

// PageFetched records a processed page
func (p *ProgressDisplay) PageFetched(attempt, maxAttempts, added, unique int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempt = attempt
	p.maxAttempts = maxAttempts
	p.unique = unique

	if p.isDebug {
		fmt.Fprintf(p.out, "%s page %d/%d • +%d • %d/%d unique\n",
			Magenta("→"), attempt, maxAttempts, added, unique, p.expected)
		return
	}
	p.printProgress()
}

// PageFailed records a page that could not be fetched
func (p *ProgressDisplay) PageFailed(attempt int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempt = attempt
	p.failures++

	if p.isDebug {
		fmt.Fprintf(p.out, "%s page %d failed: %v\n", Red("✗"), attempt, err)
		return
	}
	p.printProgress()
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	line := fmt.Sprintf("%s %s %d/%d • page %d/%d • %s",
		Cyan(p.chain),
		progressBar(p.unique, p.expected, 20),
		p.unique,
		p.expected,
		p.attempt,
		p.maxAttempts,
		formatDuration(time.Since(p.startTime)),
	)

	if p.failures > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failures)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(unique int, outputPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.out, "\n\n%s Saved %d unique tokens to %s\n", Green("✓"), unique, outputPath)
	fmt.Fprintf(p.out, "  %s %d pages in %s\n", Dim("•"), p.attempt, formatDuration(elapsed))

	if p.failures > 0 {
		fmt.Fprintf(p.out, "  %s %d pages failed\n", Dim("•"), p.failures)
	}
	if unique < p.expected {
		fmt.Fprintf(p.out, "  %s only %d of %d expected tokens were returned\n",
			Yellow("⚠"), unique, p.expected)
	}
}
