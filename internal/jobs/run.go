package jobs

import (
	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/query"
	"github.com/roach88/boltview/internal/store"
)

// execute dispatches on the request kind. A zero Status in the returned
// update means success.
func (s *Scheduler) execute(h *Handle, r *store.ReadTx, req Request) Update {
	if h.ctx.Err() != nil {
		return Update{Status: StatusCancelled}
	}

	switch req.Kind {
	case KindScan:
		return s.scan(h, r, req)
	case KindCount:
		return s.count(h, r, req)
	case KindDBStats:
		st, err := r.Stats(req.DB)
		if err != nil {
			return outcome(h, 0, err)
		}
		return Update{Result: &Result{DBStats: &st}}
	case KindEnvStats:
		st, err := r.EnvStats()
		if err != nil {
			return outcome(h, 0, err)
		}
		return Update{Result: &Result{EnvStats: &st}}
	case KindExport:
		return s.export(h, r, req)
	default:
		return outcome(h, 0, apperr.Newf(apperr.CodeInvalidArgument, "submit", "unknown job kind %d", int(req.Kind)))
	}
}

func scanQuery(req Request) query.Query {
	if req.Query.Mode() == 0 {
		return query.All()
	}
	return req.Query
}

func (s *Scheduler) scan(h *Handle, r *store.ReadTx, req Request) Update {
	q := scanQuery(req)
	if req.Limit > 0 {
		q = q.WithLimit(req.Limit)
	}

	var st query.Stats
	var recs []store.Record
	for rec, err := range query.Execute(r, req.DB, q, query.WithStats(&st), query.OnVisit(s.unitCheck(h))) {
		if err != nil {
			return outcome(h, st.Visited, err)
		}
		recs = append(recs, rec)
	}
	return Update{
		Scanned: st.Visited,
		Result:  &Result{Records: recs, Count: len(recs), Skipped: st.Skipped},
	}
}

func (s *Scheduler) count(h *Handle, r *store.ReadTx, req Request) Update {
	var st query.Stats
	n := 0
	for _, err := range query.Execute(r, req.DB, query.All(), query.WithStats(&st), query.OnVisit(s.unitCheck(h))) {
		if err != nil {
			return outcome(h, st.Visited, err)
		}
		n++
	}
	return Update{Scanned: st.Visited, Result: &Result{Count: n}}
}

func (s *Scheduler) export(h *Handle, r *store.ReadTx, req Request) Update {
	if req.Path == "" {
		return outcome(h, 0, apperr.New(apperr.CodeInvalidArgument, "export", "no destination path"))
	}
	var st query.Stats
	seq := query.Execute(r, req.DB, scanQuery(req), query.WithStats(&st), query.OnVisit(s.unitCheck(h)))
	n, err := export.WriteFile(req.Path, req.Format, seq)
	if err != nil {
		return outcome(h, st.Visited, err)
	}
	return Update{Scanned: st.Visited, Result: &Result{Exported: n, Count: n}}
}
