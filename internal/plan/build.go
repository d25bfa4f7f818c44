package plan

import (
	"time"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// CompileBuild returns the commands a build of d with options o runs. The result
// depends only on its arguments; at names the backup directory when one is made.
//
// The checkout override is used as given. Dropping an override that matches the
// current branch is the caller's job.
func CompileBuild(d models.InstanceDescriptor, o models.BuildOptions, at time.Time) Plan {
	p := Plan{"cd " + d.Path, "git fetch"}

	if o.Clear {
		p = append(p, "git checkout .")
	}
	if branch, ok := o.Checkout.Get(); ok && branch != "" {
		p = append(p, "git checkout "+branch)
	}

	if d.Git.SubmodulesRequired {
		p = append(p, "git pull --recurse-submodules")
	} else {
		p = append(p, "git pull")
	}

	if d.Node.NVMAlias != "" {
		p = append(p, "nvm use "+d.Node.NVMAlias)
	}
	if d.Node.ForceInstall {
		p = append(p, "npm install --force")
	} else {
		p = append(p, "npm install")
	}

	script := d.Node.Script
	if script == "" {
		script = d.Name
	}
	p = append(p, "npm run "+script)

	// The move has to be the last step before the web root is recreated.
	if d.HasBackups() && o.Backup.OrElse(false) {
		p = append(p, "mv "+d.WebRoot+" "+d.BackupsDir+"/"+Stamp(at))
	}

	return append(p,
		"mkdir -p "+d.WebRoot,
		"cp -r "+buildOutput(d)+"/* "+d.WebRoot+"/.",
	)
}

func buildOutput(d models.InstanceDescriptor) string {
	if d.BuildOutputDir != "" {
		return d.BuildOutputDir
	}
	return d.Path + "/dist"
}
