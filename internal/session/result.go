package session

import (
	"fmt"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/plan"
)

// Tab selects which part of a job result is displayed.
type Tab int

const (
	// TabCommands shows the commands the worker ran, one per line.
	TabCommands Tab = iota
	// TabOutput shows the captured log.
	TabOutput
)

func (t Tab) String() string {
	if t == TabCommands {
		return "commands"
	}
	return "output"
}

// ParseTab parses "commands" or "output".
func ParseTab(s string) (Tab, error) {
	switch s {
	case "commands":
		return TabCommands, nil
	case "output":
		return TabOutput, nil
	default:
		return TabOutput, fmt.Errorf("unknown tab %q", s)
	}
}

// ResultView is the presentation of a completed job.
type ResultView struct {
	Result models.JobResult
	Tab    Tab
}

func newResultView(r *models.JobResult) *ResultView {
	v := &ResultView{Tab: TabOutput}
	if r != nil {
		v.Result = *r
	}
	return v
}

// Commands returns the reported commands one per line.
func (v ResultView) Commands() string {
	return plan.SplitCommands(v.Result.Commands).Lines()
}

// Output returns the captured log.
func (v ResultView) Output() string {
	return v.Result.Output
}

// Text returns the content of the selected tab.
func (v ResultView) Text() string {
	if v.Tab == TabCommands {
		return v.Commands()
	}
	return v.Output()
}
