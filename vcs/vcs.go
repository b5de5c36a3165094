// Package vcs is the collaborator pyomcore calls out to for git
// plumbing: the current commit of a repository or smart-contract
// submodule, its configured remotes, and whether a commit carries a tag
// signed by a given fingerprint. No git library exists anywhere in the
// corpus this was built from, and the original implementation itself
// shells out to the git binary, so this package does the same with
// os/exec rather than inventing or vendoring a git client.
package vcs

// VCS is the capability pyomcore's verify_signed_tag action and the
// bootstrap/add_smart_contract flow depend on.
type VCS interface {
	// CurrentCommit returns the hex commit id HEAD points at in repoDir.
	CurrentCommit(repoDir string) (string, error)

	// RemoteURLs returns every configured remote name to its URL.
	RemoteURLs(repoDir string) (map[string]string, error)

	// Init runs `git init` in repoDir.
	Init(repoDir string) error

	// VerifyTagSignature reports whether some tag pointing at commitID
	// in repoDir carries a valid signature from fpr. gnupgHome is the
	// GNUPGHOME git's own gpg invocation should trust, so verification
	// runs against the chain-local keyring rather than the operator's
	// real one.
	VerifyTagSignature(repoDir, commitID, fpr, gnupgHome string) error
}
