package provider

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pthm-cable/gridsoup/renderer"
)

// File cycles through genomes stored one per line. Spaces between genes
// are ignored and blank lines skipped.
type File struct {
	lines []string
	index int
}

// NewFile reads every genome from path.
func NewFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening genome file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ReplaceAll(strings.TrimSpace(scanner.Text()), " ", "")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading genome file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoData)
	}
	return &File{lines: lines}, nil
}

// RequestNewData moves to the next line, wrapping to the first.
func (p *File) RequestNewData(context.Context) error {
	p.index = (p.index + 1) % len(p.lines)
	return nil
}

// RawData returns the current line.
func (p *File) RawData() (string, error) {
	return p.lines[p.index], nil
}

// PreparedData returns the current line as a color.
func (p *File) PreparedData() (renderer.RGB, error) {
	return tripleFromDigits(p.lines[p.index])
}

// Len returns the number of genomes in the file.
func (p *File) Len() int { return len(p.lines) }
