package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ariavasulin/YouLearn/internal/notebook"
)

// verify checks the claims of every verifiable leaf changed since the
// cursor and replaces the report. Source leaves are only read.
func (o *Orchestrator) verify(ctx context.Context, since, start time.Time) (Outcome, error) {
	leaves, err := o.nb.ListLeaves()
	if err != nil {
		return Outcome{}, fmt.Errorf("list leaves: %w", err)
	}
	delta := changedSince(leaves, since, func(l notebook.LeafInfo) bool { return l.Verify })
	out := Outcome{Delta: leafPaths(delta)}
	if len(delta) == 0 {
		out.Skipped = true
		out.Message = "nothing to verify"
		return out, nil
	}
	if o.search == nil {
		return out, fmt.Errorf("verify: search %w", ErrCapabilityUnavailable)
	}

	var claims []Claim
	for _, l := range delta {
		data, err := o.nb.Read(l.Path)
		if err != nil {
			return out, fmt.Errorf("read %s: %w", l.Path, err)
		}
		claims = append(claims, ExtractClaims(l.Path, string(data))...)
	}

	findings := make([]Finding, len(claims))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.SearchConcurrency)
	for i, c := range claims {
		i, c := i, c
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrPassPanicked, r)
				}
			}()
			snippets, err := o.search.Search(gctx, c.Query())
			if err != nil {
				return fmt.Errorf("search claim in %s: %w", c.Source, err)
			}
			v, err := o.judge.Judge(gctx, c, snippets)
			if err != nil {
				return err
			}
			v = v.normalize()
			claimsJudged.WithLabelValues(string(v.Status)).Inc()
			findings[i] = Finding{
				Source:          c.Source,
				Claim:           c.Text,
				Status:          v.Status,
				Correction:      v.Correction,
				SourceReference: v.SourceReference,
				Explanation:     v.Explanation,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("verify: %w", err)
	}

	report := Report{Timestamp: start.UTC(), FilesChecked: out.Delta, Findings: findings}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return out, fmt.Errorf("encode report: %w", err)
	}
	reportPath := o.nb.Layout().Report
	if err := o.nb.Scoped(reportPath).Write(reportPath, append(data, '\n')); err != nil {
		return out, fmt.Errorf("write report: %w", err)
	}

	out.Claims = len(claims)
	out.Written = reportPath
	out.Message = fmt.Sprintf("checked %d claim(s) in %d file(s)", len(claims), len(delta))
	return out, nil
}
