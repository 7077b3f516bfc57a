// Package issuance stubs the downstream policy-issuance system: it writes
// a synthetic screenshot artifact and mints a deterministic policy number
// instead of driving a real browser.
package issuance

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CaseSnapshot is the minimal case data the stub needs to render an
// artifact and mint a policy number.
type CaseSnapshot struct {
	CaseID string
	Plan   string
	Scope  string
	Days   int
}

// Result is what the issuance stub returns for one simulation.
type Result struct {
	ScreenshotPath string
	PolicyNumber   string
	Timestamp      time.Time
}

// Stub renders synthetic issuance artifacts to ScreenshotDir.
type Stub struct {
	ScreenshotDir string
}

// NewStub builds a Stub writing artifacts under dir.
func NewStub(dir string) Stub {
	return Stub{ScreenshotDir: dir}
}

// Simulate writes a small PNG screenshot for snap and returns the
// synthesized policy number and artifact path. It never drives a real
// browser; the real issuance system is an external collaborator.
func (s Stub) Simulate(ctx context.Context, snap CaseSnapshot) (Result, error) {
	if err := os.MkdirAll(s.ScreenshotDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("issuance: create screenshot dir: %w", err)
	}

	path := filepath.Join(s.ScreenshotDir, fmt.Sprintf("issuance_%s.png", snap.CaseID))
	data, err := renderArtifact(snap)
	if err != nil {
		return Result{}, fmt.Errorf("issuance: render artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("issuance: write screenshot: %w", err)
	}

	return Result{
		ScreenshotPath: path,
		PolicyNumber:   PolicyNumber(snap.CaseID),
		Timestamp:      time.Now().UTC(),
	}, nil
}

// PolicyNumber derives the synthetic policy reference for a case ID: the
// "TP-" prefix followed by the first 8 characters of the case ID with its
// hyphens removed, uppercased.
func PolicyNumber(caseID string) string {
	id := strings.ReplaceAll(caseID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "TP-" + strings.ToUpper(id)
}

// renderArtifact produces a tiny, deterministic PNG so the stub returns a
// real image file without any browser dependency.
func renderArtifact(snap CaseSnapshot) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	fill := color.RGBA{R: 0x1f, G: 0x5c, B: 0x99, A: 0xff}
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
