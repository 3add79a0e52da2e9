package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()

	sum, same := tr.Unchanged("a.norg", []byte("one"))
	if same {
		t.Fatal("unknown path reported unchanged")
	}
	tr.Record("a.norg", sum)

	if _, same := tr.Unchanged("a.norg", []byte("one")); !same {
		t.Error("identical content reported changed")
	}
	if _, same := tr.Unchanged("a.norg", []byte("two")); same {
		t.Error("new content reported unchanged")
	}

	tr.Forget("a.norg")
	if _, same := tr.Unchanged("a.norg", []byte("one")); same {
		t.Error("forgotten path reported unchanged")
	}
}
