package objects

import (
	"context"
	"testing"

	"github.com/Keksclan/goNutStash/keys"
	"github.com/Keksclan/goNutStash/kv/kvtest"
	"github.com/Keksclan/goNutStash/lookup"
)

type objKey struct {
	domainID  int64
	sub       string
	present   bool
	shortname string
}

func mk(domainID int64, sub keys.Subdomain, shortname string) objKey {
	return objKey{domainID: domainID, sub: sub.Value(), present: sub.Present(), shortname: shortname}
}

type fakeQuerier struct {
	files  map[objKey]string
	redirs map[objKey]string
	calls  int
}

func (q *fakeQuerier) FilePath(_ context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	q.calls++
	p, ok := q.files[mk(domainID, sub, shortname)]
	return p, ok, nil
}

func (q *fakeQuerier) RedirectTarget(_ context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	q.calls++
	u, ok := q.redirs[mk(domainID, sub, shortname)]
	return u, ok, nil
}

func newResolverForTest() (*Resolver, *kvtest.Fake, *fakeQuerier) {
	fake := kvtest.New()
	q := &fakeQuerier{files: map[objKey]string{}, redirs: map[objKey]string{}}
	return New(lookup.New(fake), q), fake, q
}

func TestFilePath_CachedAfterFirstQuery(t *testing.T) {
	r, _, q := newResolverForTest()
	q.files[mk(1, keys.Sub(""), "nutpic")] = "/data/nu/nutpic.png"
	ctx := t.Context()

	p, found, err := r.FilePath(ctx, 1, keys.Sub(""), "nutpic")
	if err != nil {
		t.Fatalf("FilePath: %v", err)
	}
	if !found || p != "/data/nu/nutpic.png" {
		t.Fatalf("got (%q, %v)", p, found)
	}

	if _, _, err := r.FilePath(ctx, 1, keys.Sub(""), "nutpic"); err != nil {
		t.Fatal(err)
	}
	if q.calls != 1 {
		t.Fatalf("store queried %d times, want 1", q.calls)
	}
}

func TestFilePath_AbsentAndRootSubdomainAreDistinctEntries(t *testing.T) {
	r, fake, q := newResolverForTest()
	q.files[mk(1, keys.Sub(""), "pic")] = "/data/pi/root.png"
	ctx := t.Context()

	// Root subdomain resolves.
	p, found, err := r.FilePath(ctx, 1, keys.Sub(""), "pic")
	if err != nil {
		t.Fatal(err)
	}
	if !found || p != "/data/pi/root.png" {
		t.Fatalf("got (%q, %v)", p, found)
	}

	// Absent subdomain is a different lookup and a different cache entry.
	_, found, err = r.FilePath(ctx, 1, keys.NoSubdomain, "pic")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("absent-subdomain lookup must not see the root entry")
	}

	rootKey := keys.Object(keys.CategoryFile, 1, keys.Sub(""), "pic")
	absentKey := keys.Object(keys.CategoryFile, 1, keys.NoSubdomain, "pic")
	if rootKey == absentKey {
		t.Fatalf("keys collide: %q", rootKey)
	}
	if v, _ := fake.Value(rootKey); v != "/data/pi/root.png" {
		t.Fatalf("root key holds %q", v)
	}
	if v, _ := fake.Value(absentKey); v != lookup.Sentinel {
		t.Fatalf("absent key holds %q, want sentinel", v)
	}
}

func TestRedirectTarget_NegativeCached(t *testing.T) {
	r, fake, q := newResolverForTest()
	ctx := t.Context()

	for i := 0; i < 2; i++ {
		_, found, err := r.RedirectTarget(ctx, 2, keys.NoSubdomain, "gone")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected not found")
		}
	}
	if q.calls != 1 {
		t.Fatalf("store queried %d times, want 1", q.calls)
	}
	key := keys.Object(keys.CategoryRedirect, 2, keys.NoSubdomain, "gone")
	if v, ok := fake.Value(key); !ok || v != lookup.Sentinel {
		t.Fatalf("key holds %q (present=%v), want sentinel", v, ok)
	}
}

func TestInvalidateFile_ForcesRefetch(t *testing.T) {
	r, _, q := newResolverForTest()
	k := mk(1, keys.Sub("i"), "cat")
	q.files[k] = "/data/ca/cat.jpg"
	ctx := t.Context()

	if _, _, err := r.FilePath(ctx, 1, keys.Sub("i"), "cat"); err != nil {
		t.Fatal(err)
	}
	if err := r.InvalidateFile(ctx, 1, keys.Sub("i"), "cat"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.FilePath(ctx, 1, keys.Sub("i"), "cat"); err != nil {
		t.Fatal(err)
	}
	if q.calls != 2 {
		t.Fatalf("store queried %d times, want 2", q.calls)
	}
}
