package types

// FileSpec is one planned source file in a blueprint.
type FileSpec struct {
	Path string `json:"path"`
	Task string `json:"task"`
}

// VisualSpec is one planned generated asset in a blueprint.
type VisualSpec struct {
	Prompt   string `json:"prompt"`
	Filename string `json:"filename"`
}

// Blueprint is the structured decomposition of a build prompt. It is produced
// once by the Architect and immutable to every later stage.
type Blueprint struct {
	ProjectName  string       `json:"project_name"`
	Files        []FileSpec   `json:"files"`
	Visuals      []VisualSpec `json:"visuals"`
	Dependencies []string     `json:"dependencies"`
	RunCommand   string       `json:"run_command"`
}

// Valid reports whether the blueprint has the minimum required shape.
func (b *Blueprint) Valid() bool {
	if b == nil || b.ProjectName == "" || len(b.Files) == 0 {
		return false
	}
	for _, f := range b.Files {
		if f.Path == "" {
			return false
		}
	}
	return true
}

// BuildState is the shared record threaded through every stage. The scheduler
// owns the canonical instance; stages receive a snapshot and return a
// StageDelta, never a direct mutation.
type BuildState struct {
	Prompt    string            `json:"prompt"`
	Blueprint *Blueprint        `json:"blueprint,omitempty"`
	Code      map[string]string `json:"code"`
	Assets    []string          `json:"assets"`
	Report    *AuditReport      `json:"report,omitempty"`
	CallsUsed int               `json:"calls_used"`
	Status    BuildStatus       `json:"status"`
	Notes     []string          `json:"notes,omitempty"` // degradation / failure annotations
}

// NewBuildState creates a fresh run record.
func NewBuildState(prompt string) *BuildState {
	return &BuildState{
		Prompt: prompt,
		Code:   map[string]string{},
		Status: StatusInit,
	}
}

// Snapshot returns a deep copy safe to hand to a concurrently running stage.
func (s *BuildState) Snapshot() *BuildState {
	cp := *s
	cp.Code = make(map[string]string, len(s.Code))
	for k, v := range s.Code {
		cp.Code[k] = v
	}
	cp.Assets = append([]string(nil), s.Assets...)
	cp.Notes = append([]string(nil), s.Notes...)
	return &cp
}

// Advance moves the status forward; regressions are ignored so stage code
// cannot accidentally rewind a terminal state.
func (s *BuildState) Advance(next BuildStatus) {
	if next.After(s.Status) {
		s.Status = next
	}
}

// StageDelta is a stage's contribution to the build, applied by the
// scheduler's merge step. Only the Engineer may populate Code.
type StageDelta struct {
	Code   map[string]string
	Assets []string
	Notes  []string
}

// Empty reports whether the delta carries nothing.
func (d StageDelta) Empty() bool {
	return len(d.Code) == 0 && len(d.Assets) == 0 && len(d.Notes) == 0
}
