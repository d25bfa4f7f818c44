package plan

import (
	"time"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// CompileRestore returns the commands that replace the web root of d with the
// backup named backup. With backupCurrent the current web root is moved aside
// first, otherwise it is removed.
//
// Restore plans are only built by the worker; clients learn them from the job
// result.
func CompileRestore(d models.InstanceDescriptor, backup string, backupCurrent bool, at time.Time) Plan {
	var p Plan
	if backupCurrent {
		p = append(p, "mv "+d.WebRoot+" "+d.BackupsDir+"/"+Stamp(at))
	} else {
		p = append(p, "rm -rf "+d.WebRoot)
	}
	return append(p, "cp -r "+d.BackupsDir+"/"+backup+" "+d.WebRoot)
}
