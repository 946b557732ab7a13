// Package mailman harvests posts out of a pipermail mailing list archive.
//
// The archive index links one gzipped mbox per month. Months already
// harvested are marked in storage under mail_link:<uri> and skipped on later
// runs. The newest month keeps accumulating posts, so it is re-read every run
// and never marked.
package mailman

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"mime"
	"net/mail"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/convert"
	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/source/status"
	"github.com/oneconcern/trawler/pkg/storage"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
)

var _ source.MailList = &Archive{}

// Archive harvests one mailing list.
type Archive struct {
	uri string
	settings
}

// New builds the adapter for the archive index at uri.
func New(uri string, opts ...Option) *Archive {
	a := &Archive{uri: uri, settings: defaultSettings()}
	for _, apply := range opts {
		apply(&a.settings)
	}
	a.l = a.l.With(zap.String("list", uri))
	return a
}

// Log streams messages from every archive not yet marked as harvested.
// An archive is marked through the store only once its messages have been
// consumed, so an interrupted run replays the whole month next time.
func (a *Archive) Log(ctx context.Context, store storage.Store) model.RecordIterator {
	links, err := a.archiveLinks(ctx)
	if err != nil {
		return model.NewFailingIterator(nil, err)
	}
	return &mailIter{ctx: ctx, adapter: a, store: store, links: links}
}

// archiveLink is one month of the list.
type archiveLink struct {
	uri    string
	month  time.Time
	dated  bool
	newest bool
}

func newArchiveLink(uri string) archiveLink {
	name := strings.TrimSuffix(path.Base(uri), ".txt.gz")
	month, err := time.Parse("2006-January", name)
	return archiveLink{uri: uri, month: month, dated: err == nil}
}

// archiveLinks scrapes the index page for the monthly mbox downloads and
// orders them oldest first. The chronologically newest month is flagged.
func (a *Archive) archiveLinks(ctx context.Context) ([]archiveLink, error) {
	raw, err := fetch.Bytes(ctx, a.uri, a.fetchOpts...)
	if err != nil {
		return nil, status.ErrFetch.WrapWithLog(a.l, err, zap.String("uri", a.uri))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, status.ErrFetch.WrapWithLog(a.l, err, zap.String("uri", a.uri))
	}

	seen := model.NewStringSet()
	var links []archiveLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasSuffix(strings.ToLower(href), ".txt.gz") {
			return
		}
		resolved := fetch.Resolve(a.uri, href)
		if seen.Has(resolved) {
			return
		}
		seen.Add(resolved)
		links = append(links, newArchiveLink(resolved))
	})

	sort.Slice(links, func(i, j int) bool {
		switch {
		case links[i].dated != links[j].dated:
			// undated names sort first, they cannot be the newest month
			return !links[i].dated
		case links[i].dated && !links[i].month.Equal(links[j].month):
			return links[i].month.Before(links[j].month)
		default:
			return links[i].uri < links[j].uri
		}
	})
	if n := len(links); n > 0 && links[n-1].dated {
		links[n-1].newest = true
	}
	a.l.Debug("archive index scraped", zap.Int("archives", len(links)))
	return links, nil
}

type mailIter struct {
	ctx     context.Context
	adapter *Archive
	store   storage.Store
	links   []archiveLink

	next    int
	current *archiveLink
	page    []model.Record
	pos     int
	err     error
}

func (it *mailIter) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	for it.pos >= len(it.page) {
		if !it.finishCurrent() {
			return false
		}
		if !it.openNext() {
			return false
		}
	}
	it.pos++
	return true
}

// finishCurrent marks the drained archive as harvested. The newest archive
// is still growing and stays unmarked.
func (it *mailIter) finishCurrent() bool {
	link := it.current
	it.current = nil
	if link == nil || link.newest {
		return true
	}
	if err := it.store.SetByKey(it.ctx, model.MailLinkKey(link.uri), link.uri); err != nil {
		it.err = err
		return false
	}
	return true
}

// openNext downloads the next unharvested archive and stages its messages.
func (it *mailIter) openNext() bool {
	for it.next < len(it.links) {
		link := it.links[it.next]
		it.next++
		if !link.newest {
			var marker string
			err := it.store.GetByKey(it.ctx, model.MailLinkKey(link.uri), &marker)
			if err == nil {
				// harvested by a previous run
				continue
			}
			if !errors.Is(err, storagestatus.ErrNotFound) {
				it.err = err
				return false
			}
		}
		records, err := it.adapter.harvest(it.ctx, link.uri)
		if err != nil {
			it.err = err
			return false
		}
		it.adapter.l.Info("mail archive harvested",
			zap.String("archive", link.uri), zap.Int("messages", len(records)))
		it.current = &link
		it.page = records
		it.pos = 0
		return true
	}
	return false
}

func (it *mailIter) Record() model.Record {
	if it.pos == 0 || it.pos > len(it.page) {
		return nil
	}
	return it.page[it.pos-1]
}

func (it *mailIter) Err() error {
	return it.err
}

func (it *mailIter) Close() error {
	it.page = nil
	it.links = nil
	it.current = nil
	return nil
}

// harvest downloads one month and parses every message in it.
func (a *Archive) harvest(ctx context.Context, uri string) ([]model.Record, error) {
	raw, err := fetch.Bytes(ctx, uri, a.fetchOpts...)
	if err != nil {
		return nil, status.ErrFetch.WrapWithLog(a.l, err, zap.String("archive", uri))
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, status.ErrLog.WrapMessage("archive %s is not gzip: %v", uri, err)
	}
	defer gz.Close()
	text, err := io.ReadAll(gz)
	if err != nil {
		return nil, status.ErrLog.WrapMessage("decompressing %s: %v", uri, err)
	}

	var records []model.Record
	for _, chunk := range splitMbox(convert.UnsafeBytesToString(text)) {
		record, ok := a.message(chunk)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// splitMbox cuts an mbox file into messages on its "From " separator lines.
func splitMbox(text string) []string {
	chunks := strings.Split("\n"+text, "\nFrom ")
	if len(chunks) <= 1 {
		return nil
	}
	return chunks[1:]
}

// message parses one mbox chunk. Messages without a message id are dropped,
// there is nothing to key them on.
func (a *Archive) message(chunk string) (model.Record, bool) {
	// the first line is the remainder of the mbox envelope separator
	_, rest, found := strings.Cut(chunk, "\n")
	if !found {
		return nil, false
	}
	msg, err := mail.ReadMessage(strings.NewReader(rest))
	if err != nil {
		a.l.Debug("unparseable message skipped", zap.Error(err))
		return nil, false
	}
	id := strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if id == "" {
		a.l.Debug("message without id skipped")
		return nil, false
	}

	record := model.Record{
		"message_id": id,
		"subject":    decodeHeader(msg.Header.Get("Subject")),
	}
	name, email := parseFrom(msg.Header.Get("From"))
	if name != "" {
		record["author_name"] = name
	}
	if email != "" {
		record["author_email"] = email
	}
	if date, derr := msg.Header.Date(); derr == nil {
		record["date"] = date.Unix()
	}
	if body, berr := io.ReadAll(msg.Body); berr == nil {
		record["body"] = strings.TrimSpace(string(body))
	}
	return record, true
}

// parseFrom understands both plain rfc 5322 addresses and the obfuscated
// "user at example.com (Jane Dev)" form pipermail rewrites senders into.
func parseFrom(v string) (name, email string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ""
	}
	if addr, err := mail.ParseAddress(v); err == nil {
		return addr.Name, strings.ToLower(addr.Address)
	}
	if i := strings.Index(v, " ("); i >= 0 && strings.HasSuffix(v, ")") {
		name = decodeHeader(v[i+2 : len(v)-1])
		v = v[:i]
	}
	email = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), " at ", "@"))
	return name, email
}

func decodeHeader(v string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}
