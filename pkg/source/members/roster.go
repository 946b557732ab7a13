// Package members harvests profiles out of a community member directory.
//
// Profiles live at sequential indexes under a base URI. The walk resumes
// from the index persisted in storage and ends after a configured number of
// consecutive holes. Periodically the whole roster is walked again from the
// start so profile edits behind the index are picked up.
//
// A profile page carries the member name in its first h1, the join date in
// an element classed member-since and the affiliation history in elements
// classed org, most recent last.
package members

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/source/status"
	"github.com/oneconcern/trawler/pkg/storage"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
)

var _ source.MemberList = &Roster{}

// Roster harvests one member directory.
type Roster struct {
	uri string
	settings
}

// New builds the adapter for the directory whose profiles live at
// uri + index.
func New(uri string, opts ...Option) *Roster {
	r := &Roster{uri: uri, settings: defaultSettings()}
	for _, apply := range opts {
		apply(&r.settings)
	}
	r.l = r.l.With(zap.String("roster", uri))
	return r
}

// Log streams member profiles beyond the persisted index. The index is
// advanced through the store as records are consumed, one behind the record
// handed out, so an interrupted run replays at most one profile.
func (r *Roster) Log(ctx context.Context, store storage.Store) model.RecordIterator {
	var index int
	if err := store.GetByKey(ctx, model.MemberIndexKey(r.uri), &index); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return model.NewFailingIterator(nil, err)
	}
	var lastScan int64
	if err := store.GetByKey(ctx, model.MemberScanKey(r.uri), &lastScan); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return model.NewFailingIterator(nil, err)
	}

	now := r.now()
	if now.Sub(time.Unix(lastScan, 0)) >= r.rescanPeriod {
		index = 0
		if err := store.SetByKey(ctx, model.MemberScanKey(r.uri), now.Unix()); err != nil {
			return model.NewFailingIterator(nil, err)
		}
		r.l.Info("member roster rescan", zap.Int64("last_scan", lastScan))
	}

	return &memberIter{ctx: ctx, roster: r, store: store, cur: index + 1}
}

type memberIter struct {
	ctx    context.Context
	roster *Roster
	store  storage.Store

	cur         int // next profile index to probe
	pendingMark int // index of the record handed out, persisted on the following Next
	empty       int
	record      model.Record
	err         error
}

func (it *memberIter) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.pendingMark > 0 {
		if err := it.store.SetByKey(it.ctx, model.MemberIndexKey(it.roster.uri), it.pendingMark); err != nil {
			it.err = err
			return false
		}
		it.pendingMark = 0
	}
	for it.empty < it.roster.lookAhead {
		index := it.cur
		it.cur++
		member, err := it.roster.profile(it.ctx, index)
		if err != nil {
			it.err = err
			return false
		}
		if member == nil {
			it.empty++
			continue
		}
		it.empty = 0
		it.record = member
		it.pendingMark = index
		return true
	}
	return false
}

func (it *memberIter) Record() model.Record {
	return it.record
}

func (it *memberIter) Err() error {
	return it.err
}

func (it *memberIter) Close() error {
	it.record = nil
	return nil
}

// profile fetches and parses one profile page. A missing or empty page
// returns (nil, nil), it only counts toward the hole look-ahead.
func (r *Roster) profile(ctx context.Context, index int) (model.Record, error) {
	uri := r.uri + strconv.Itoa(index)
	raw, err := fetch.Bytes(ctx, uri, r.fetchOpts...)
	if err != nil {
		var ferr *fetch.Error
		if errors.As(err, &ferr) && ferr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, status.ErrFetch.WrapWithLog(r.l, err, zap.String("profile", uri))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, status.ErrLog.WrapMessage("profile %s: %v", uri, err)
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		return nil, nil
	}
	record := model.Record{
		"member_id":   strconv.Itoa(index),
		"member_name": name,
		"member_uri":  uri,
	}
	joined := strings.TrimSpace(doc.Find(".member-since").First().Text())
	joined = strings.TrimSpace(strings.TrimPrefix(joined, "Member since:"))
	if joined != "" {
		if t, perr := time.Parse("January 2, 2006", joined); perr == nil {
			record["date_joined"] = t.Unix()
		} else {
			r.l.Debug("unparseable join date", zap.String("profile", uri), zap.String("joined", joined))
		}
	}
	if company := strings.TrimSpace(doc.Find(".org").Last().Text()); company != "" {
		record["company_draft"] = company
	}
	return record, nil
}
