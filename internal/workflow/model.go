package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Step is the last step a workflow completed.
type Step string

const (
	StepCreated        Step = "created"
	StepScreenshot     Step = "screenshot_ready"
	StepReadyForVision Step = "ready_for_vision"
	StepHTML           Step = "html_ready"
	StepPDF            Step = "pdf_ready"
)

// Status is the overall state of a workflow.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Workflow tracks the artifacts of one document as it moves from upload
// to exported PDF.
type Workflow struct {
	Name            string    `json:"name"`
	InputPath       string    `json:"input_path"`
	ScreenshotPath  string    `json:"screenshot_path,omitempty"`
	ScreenshotPaths []string  `json:"screenshot_paths,omitempty"`
	HTMLPath        string    `json:"html_path,omitempty"`
	PDFPath         string    `json:"pdf_path,omitempty"`
	TemplatePath    string    `json:"template_path,omitempty"`
	ArtifactURL     string    `json:"artifact_url,omitempty"`
	Step            Step      `json:"step"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a deep copy so stored records are never aliased.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.ScreenshotPaths = append([]string(nil), w.ScreenshotPaths...)
	return &c
}

// Fail marks the workflow failed with err's message.
func (w *Workflow) Fail(err error, now time.Time) {
	w.Status = StatusFailed
	w.Error = err.Error()
	w.UpdatedAt = now
}

// Advance records a completed step and clears any earlier failure.
func (w *Workflow) Advance(step Step, now time.Time) {
	w.Step = step
	w.Error = ""
	w.Status = StatusInProgress
	if step == StepPDF {
		w.Status = StatusCompleted
	}
	w.UpdatedAt = now
}

// DefaultName builds workflow_<YYYYMMDD_HHMMSS>_<6 hex>.
func DefaultName(now time.Time) string {
	return fmt.Sprintf("workflow_%s_%s", now.Format("20060102_150405"), shortID())
}

func shortID() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uuid.NewString()[:6]
	}
	return hex.EncodeToString(b[:])
}
