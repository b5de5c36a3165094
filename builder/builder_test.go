package builder_test

import (
	"testing"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/bootstrap"
	"github.com/toddfratello/pyomcore/builder"
	_ "github.com/toddfratello/pyomcore/chain/actions"
	"github.com/toddfratello/pyomcore/internal/testutil"
)

func TestAppendBlockAssignsSequentialIndices(t *testing.T) {
	rootdir := t.TempDir()
	identity := []byte("builder-owner")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		idx, err := builder.AppendBlock(v, block.Protoblock{})
		if err != nil {
			t.Fatalf("AppendBlock(%d): %v", want, err)
		}
		if idx != want {
			t.Fatalf("AppendBlock idx: got %d want %d", idx, want)
		}
	}
	if v.Nextidx != 4 {
		t.Errorf("Nextidx after three appends: got %d want 4", v.Nextidx)
	}
}

func TestAppendBlockWrittenTripleVerifiesAgainstOwnSigner(t *testing.T) {
	rootdir := t.TempDir()
	identity := []byte("builder-owner-2")
	sgnr := testutil.NewFakeSigner(rootdir, identity)
	vc := testutil.NewFakeVCS()

	v, err := bootstrap.InitializeBlockchain(rootdir, sgnr, vc, identity, nil)
	if err != nil {
		t.Fatalf("InitializeBlockchain: %v", err)
	}

	idx, err := builder.AppendBlock(v, block.Protoblock{})
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}

	_, blockrefContent, sigContent, err := v.Store.ReadTriple(idx)
	if err != nil {
		t.Fatalf("ReadTriple: %v", err)
	}
	fpr, err := sgnr.VerifyDetached(blockrefContent, sigContent)
	if err != nil {
		t.Fatalf("VerifyDetached: %v", err)
	}
	if fpr != v.Fpr {
		t.Errorf("signature fingerprint: got %s want %s", fpr, v.Fpr)
	}
}
