package testutil

import "github.com/toddfratello/pyomcore/errs"

// FakeVCS is an in-memory stand-in for vcs.VCS, keyed by repoDir so tests
// can stage a repository's HEAD commit and signed tags without shelling
// out to git.
type FakeVCS struct {
	Commits    map[string]string            // repoDir -> HEAD commit id
	Remotes    map[string]map[string]string // repoDir -> remote name -> url
	SignedTags map[string]map[string]string // repoDir -> commit id -> signer fpr
}

// NewFakeVCS creates an empty FakeVCS.
func NewFakeVCS() *FakeVCS {
	return &FakeVCS{
		Commits:    make(map[string]string),
		Remotes:    make(map[string]map[string]string),
		SignedTags: make(map[string]map[string]string),
	}
}

func (f *FakeVCS) CurrentCommit(repoDir string) (string, error) {
	commit, ok := f.Commits[repoDir]
	if !ok {
		return "", errs.Newf(errs.NotFound, "fakevcs: no commit staged for %s", repoDir)
	}
	return commit, nil
}

func (f *FakeVCS) RemoteURLs(repoDir string) (map[string]string, error) {
	return f.Remotes[repoDir], nil
}

func (f *FakeVCS) Init(repoDir string) error {
	if _, ok := f.Commits[repoDir]; !ok {
		f.Commits[repoDir] = ""
	}
	return nil
}

func (f *FakeVCS) VerifyTagSignature(repoDir, commitID, fpr, gnupgHome string) error {
	tags, ok := f.SignedTags[repoDir]
	if !ok {
		return errs.New(errs.NoSignedTag, "fakevcs: no signed tags for repo")
	}
	signer, ok := tags[commitID]
	if !ok || signer != fpr {
		return errs.Newf(errs.NoSignedTag, "fakevcs: no tag signed by %s at %s", fpr, commitID)
	}
	return nil
}
