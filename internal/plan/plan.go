// Package plan compiles instance descriptors into the ordered shell commands a
// build or restore runs.
package plan

import (
	"strings"
	"time"
)

// Separator joins commands into the single string handed to the worker and
// echoed back in job results.
const Separator = " && "

// StampLayout is the layout of the ISO date stamp used to name backups.
const StampLayout = "2006-01-02T15:04:05"

// Plan is an ordered list of shell commands.
type Plan []string

// String joins the plan into one command line.
func (p Plan) String() string {
	return strings.Join(p, Separator)
}

// Lines renders one command per line.
func (p Plan) Lines() string {
	return strings.Join(p, "\n")
}

// SplitCommands re-splits a joined command string into its commands.
func SplitCommands(commands string) Plan {
	if commands == "" {
		return nil
	}
	return strings.Split(commands, Separator)
}

// Stamp renders the backup name for a build started at t.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}
