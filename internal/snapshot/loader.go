package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/gitx"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Querier is the read side of git a snapshot needs. *gitx.Repo implements
// it.
type Querier interface {
	Status(ctx context.Context) (gitx.Status, error)
	PushRef(ctx context.Context) (string, error)
	Branches(ctx context.Context) ([]gitx.Branch, error)
	Tags(ctx context.Context) ([]gitx.Tag, error)
	Remotes(ctx context.Context) ([]string, error)
	Stashes(ctx context.Context) ([]gitx.Stash, error)
	RecentCommits(ctx context.Context, n int) ([]gitx.Commit, error)
	Unpulled(ctx context.Context, n int) ([]gitx.Commit, error)
	Unpushed(ctx context.Context, n int) ([]gitx.Commit, error)
	Describe(ctx context.Context) (gitx.LatestTag, error)
	Diff(ctx context.Context, staged bool) (string, error)
}

// MaxUpstreamCommits caps the unpulled and unpushed lists.
const MaxUpstreamCommits = 10

// Loader produces snapshots. Concurrent Load calls share one query set
// unless Invalidate was called in between.
type Loader struct {
	q      Querier
	recent int
	log    *slog.Logger
	now    func() time.Time

	group singleflight.Group
	gen   atomic.Uint64
	epoch atomic.Uint64
}

// NewLoader returns a loader listing up to recent commits.
func NewLoader(q Querier, recent int, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{q: q, recent: recent, log: log, now: time.Now}
}

// Invalidate makes later Load calls start a fresh query set instead of
// joining one already in flight. Call it after every mutation.
func (l *Loader) Invalidate() { l.epoch.Add(1) }

// Load returns the current state. The returned value is shared between
// callers and must not be modified.
func (l *Loader) Load(ctx context.Context) (*State, error) {
	key := strconv.FormatUint(l.epoch.Load(), 10)
	v, err, shared := l.group.Do(key, func() (any, error) {
		return l.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	st := v.(*State)
	if shared {
		l.log.Debug("refresh joined in-flight load", "generation", st.Generation)
	}
	return st, nil
}

func (l *Loader) load(ctx context.Context) (*State, error) {
	start := l.now()
	st := &State{Generation: l.gen.Add(1)}

	status, err := l.q.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	st.Branch, st.Entries = status.Branch, status.Entries

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { st.PushRef, err = l.q.PushRef(gctx); return })
	g.Go(func() (err error) { st.Branches, err = l.q.Branches(gctx); return })
	g.Go(func() (err error) { st.Tags, err = l.q.Tags(gctx); return })
	g.Go(func() (err error) { st.Remotes, err = l.q.Remotes(gctx); return })
	g.Go(func() (err error) { st.Stashes, err = l.q.Stashes(gctx); return })
	g.Go(func() (err error) { st.LatestTag, err = l.q.Describe(gctx); return })
	g.Go(func() (err error) { st.RawUnstaged, err = l.q.Diff(gctx, false); return })
	g.Go(func() (err error) { st.RawStaged, err = l.q.Diff(gctx, true); return })
	if !status.Branch.Unborn() && l.recent > 0 {
		g.Go(func() (err error) { st.Commits, err = l.q.RecentCommits(gctx, l.recent); return })
	}
	if status.Branch.Upstream != "" {
		g.Go(func() (err error) { st.Unpulled, err = l.q.Unpulled(gctx, MaxUpstreamCommits); return })
		g.Go(func() (err error) { st.Unpushed, err = l.q.Unpushed(gctx, MaxUpstreamCommits); return })
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	st.Unstaged = diff.Parse(st.RawUnstaged)
	st.Staged = diff.Parse(st.RawStaged)
	for _, files := range [][]diff.FileDiff{st.Unstaged, st.Staged} {
		for _, f := range files {
			if f.Err != nil {
				l.log.Warn("diff unavailable", "path", f.Path, "err", f.Err)
			}
		}
	}
	st.Fingerprint = fingerprint(st)
	st.LoadedAt = l.now()
	l.log.Debug("refresh loaded", "generation", st.Generation, "entries", len(st.Entries), "took", st.LoadedAt.Sub(start))
	return st, nil
}

func fingerprint(st *State) uint64 {
	h := xxh3.New()
	fmt.Fprintf(h, "%+v\x00%s\x00%+v\x00", st.Branch, st.PushRef, st.LatestTag)
	fmt.Fprintf(h, "%+v\x00%q\x00%+v\x00%+v\x00", st.Branches, st.Remotes, st.Tags, st.Stashes)
	fmt.Fprintf(h, "%+v\x00%+v\x00%+v\x00%+v\x00", st.Entries, st.Commits, st.Unpulled, st.Unpushed)
	h.WriteString(st.RawUnstaged)
	h.WriteString("\x00")
	h.WriteString(st.RawStaged)
	return h.Sum64()
}
