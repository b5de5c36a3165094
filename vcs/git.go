package vcs

import (
	"bytes"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/toddfratello/pyomcore/errs"
)

// GitVCS shells out to the git binary on PATH.
type GitVCS struct{}

// New returns the git-CLI-backed VCS.
func New() *GitVCS { return &GitVCS{} }

func run(env []string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command("git", args...)
	if env != nil {
		cmd.Env = env
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func (g *GitVCS) CurrentCommit(repoDir string) (string, error) {
	out, _, err := run(nil, "-C", repoDir, "rev-parse", "HEAD")
	if err != nil {
		return "", errs.Wrapf(errs.IOError, err, "git rev-parse HEAD in %s", repoDir)
	}
	commit := strings.TrimSpace(out)
	if _, err := strconv.ParseUint(commit, 16, 64); err != nil && len(commit) != 40 {
		return "", errs.Newf(errs.Schema, "git rev-parse HEAD returned non-hex commit: %q", commit)
	}
	return commit, nil
}

func (g *GitVCS) RemoteURLs(repoDir string) (map[string]string, error) {
	out, _, err := run(nil, "-C", repoDir, "remote")
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "git remote in %s", repoDir)
	}
	remotes := map[string]string{}
	for _, name := range strings.Fields(out) {
		urlOut, _, err := run(nil, "-C", repoDir, "config", "--get", "remote."+name+".url")
		if err != nil {
			return nil, errs.Wrapf(errs.IOError, err, "git config remote.%s.url in %s", name, repoDir)
		}
		remotes[name] = strings.TrimSpace(urlOut)
	}
	return remotes, nil
}

func (g *GitVCS) Init(repoDir string) error {
	if _, _, err := run(nil, "-C", repoDir, "init"); err != nil {
		return errs.Wrapf(errs.IOError, err, "git init in %s", repoDir)
	}
	return nil
}

// validsigRe matches the `[GNUPG:] VALIDSIG ...` status line git prints
// on git verify-tag --raw when the tag's signature checks out; the last
// field is the signing key's fingerprint.
var validsigRe = regexp.MustCompile(`\[GNUPG:\] VALIDSIG\s\S+\s\S+\s\S+\s\S+\s\S+\s\S+\s\S+\s\S+\s\S+\s(\S+)`)

func (g *GitVCS) listSignedTags(repoDir, commitID, gnupgHome string) ([]string, error) {
	env := append(os.Environ(), "GNUPGHOME="+gnupgHome)
	out, _, err := run(env, "-C", repoDir, "tag", "--points-at", commitID)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "git tag --points-at %s in %s", commitID, repoDir)
	}
	var fprs []string
	for _, tag := range strings.Fields(out) {
		_, stderr, _ := run(env, "-C", repoDir, "verify-tag", "--raw", tag)
		for _, line := range strings.Split(stderr, "\n") {
			if m := validsigRe.FindStringSubmatch(line); m != nil {
				fprs = append(fprs, m[1])
			}
		}
	}
	return fprs, nil
}

func (g *GitVCS) VerifyTagSignature(repoDir, commitID, fpr, gnupgHome string) error {
	fprs, err := g.listSignedTags(repoDir, commitID, gnupgHome)
	if err != nil {
		return err
	}
	for _, f := range fprs {
		if strings.EqualFold(f, fpr) {
			return nil
		}
	}
	return errs.Newf(errs.NoSignedTag, "no tag signed by %s in %s at commit %s", fpr, repoDir, commitID)
}
