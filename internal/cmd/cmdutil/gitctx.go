package cmdutil

import (
	"os"
	"os/exec"
	"strings"

	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/spf13/cobra"
)

// Wrapper for exec to allow testing
var execCommand = exec.Command

// MessageContext builds the sender context attached to outgoing messages.
// Explicit flags and agent.* config win; otherwise project_dir is the
// working directory and git_branch is its checked-out branch, or empty
// outside a repository.
func MessageContext(cmd *cobra.Command) mailbox.Context {
	ctx := mailbox.Context{
		ProjectDir: StringFlagOrConfig(cmd, "project-dir", "agent.project_dir"),
		GitBranch:  StringFlagOrConfig(cmd, "git-branch", "agent.git_branch"),
	}
	if ctx.ProjectDir == "" {
		if wd, err := os.Getwd(); err == nil {
			ctx.ProjectDir = wd
		}
	}
	if ctx.GitBranch == "" && ctx.ProjectDir != "" {
		ctx.GitBranch = CurrentBranch(ctx.ProjectDir)
	}
	return ctx
}

// CurrentBranch returns the branch checked out in dir. It returns "" when
// dir is not a git repository or git is unavailable, and "HEAD" for a
// detached head.
func CurrentBranch(dir string) string {
	cmd := execCommand("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
