// Package gerrit implements the review source against a gerrit host, paging
// through `gerrit query --format JSON` output over ssh.
package gerrit

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/convert"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/source/status"
)

var _ source.RCS = &Review{}

// Review harvests review activity for one repo.
type Review struct {
	desc model.Repo
	settings
}

// New builds the adapter for one repo descriptor.
func New(desc model.Repo, opts ...Option) *Review {
	r := &Review{desc: desc, settings: defaultSettings()}
	for _, apply := range opts {
		apply(&r.settings)
	}
	r.l = r.l.With(zap.String("project", r.project()))
	return r
}

func (r *Review) project() string {
	if r.desc.Organization == "" {
		return r.desc.Module
	}
	return r.desc.Organization + "/" + r.desc.Module
}

// Setup establishes the ssh connection, unless a runner was injected.
func (r *Review) Setup(ctx context.Context) error {
	if r.runner != nil {
		return nil
	}
	if r.host == "" {
		return status.ErrSetup.WrapMessage("no review host configured")
	}
	runner, err := newSSHRunner(r.host, r.port, r.username, r.keyFile)
	if err != nil {
		return err
	}
	r.runner = runner
	return nil
}

// Close releases the ssh connection.
func (r *Review) Close() error {
	if r.runner == nil {
		return nil
	}
	return r.runner.Close()
}

func (r *Review) queryCommand(branch string, limit int, resumeKey string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "gerrit query --all-approvals --patch-sets --format JSON project:'%s' branch:%s limit:%d",
		r.project(), branch, limit)
	if resumeKey != "" {
		fmt.Fprintf(&b, " resume_sortkey:%s", resumeKey)
	}
	return b.String()
}

// Log streams reviews on branch newer than sinceID, newest first.
func (r *Review) Log(ctx context.Context, branch, sinceID string) model.RecordIterator {
	if r.runner == nil {
		return model.NewFailingIterator(nil, status.ErrSetup.WrapMessage("adapter not set up"))
	}
	return &reviewIter{
		ctx:     ctx,
		adapter: r,
		branch:  branch,
		sinceID: sinceID,
	}
}

// LastID returns the id of the newest review on branch, or "" when the
// branch has no reviews yet.
func (r *Review) LastID(ctx context.Context, branch string) (string, error) {
	if r.runner == nil {
		return "", status.ErrSetup.WrapMessage("adapter not set up")
	}
	out, err := r.runner.Run(ctx, r.queryCommand(branch, 1, ""))
	if err != nil {
		return "", err
	}
	reviews, _, err := parsePage(out)
	if err != nil {
		return "", err
	}
	if len(reviews) == 0 {
		return "", nil
	}
	return reviews[0].GetString("id"), nil
}

// parsePage splits query output into review rows and the trailing stats row.
func parsePage(out []byte) ([]model.Record, int, error) {
	var (
		reviews  []model.Record
		rowCount = -1
	)
	for _, line := range strings.Split(convert.UnsafeBytesToString(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var raw map[string]interface{}
		if err := jsoniter.Unmarshal(convert.UnsafeStringToBytes(line), &raw); err != nil {
			return nil, 0, status.ErrLog.WrapMessage("malformed query output: %v", err)
		}
		if t, _ := raw["type"].(string); t == "stats" {
			if n, ok := raw["rowCount"].(float64); ok {
				rowCount = int(n)
			}
			continue
		}
		reviews = append(reviews, model.Record(raw))
	}
	return reviews, rowCount, nil
}

type reviewIter struct {
	ctx     context.Context
	adapter *Review
	branch  string
	sinceID string

	page      []model.Record
	pos       int
	resumeKey string
	exhausted bool
	err       error
}

func (it *reviewIter) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	for it.pos >= len(it.page) {
		if it.exhausted {
			return false
		}
		if !it.fetchPage() {
			return false
		}
	}
	it.pos++
	return true
}

func (it *reviewIter) fetchPage() bool {
	out, err := it.adapter.runner.Run(it.ctx, it.adapter.queryCommand(it.branch, it.adapter.pageSize, it.resumeKey))
	if err != nil {
		it.err = err
		return false
	}
	reviews, rowCount, err := parsePage(out)
	if err != nil {
		it.err = err
		return false
	}
	if len(reviews) == 0 || rowCount == 0 {
		it.exhausted = true
		return false
	}
	// a short page is the last one
	if len(reviews) < it.adapter.pageSize {
		it.exhausted = true
	}

	it.page = it.page[:0]
	it.pos = 0
	for _, review := range reviews {
		if sk := review.GetString("sortKey"); sk != "" {
			it.resumeKey = sk
		}
		if it.sinceID != "" && review.GetString("id") == it.sinceID {
			// reached the cursor, older reviews were harvested before
			it.exhausted = true
			break
		}
		it.page = append(it.page, it.adapter.reviewRecord(review, it.branch))
	}
	return len(it.page) > 0 || !it.exhausted
}

func (it *reviewIter) Record() model.Record {
	if it.pos == 0 || it.pos > len(it.page) {
		return nil
	}
	return it.page[it.pos-1]
}

func (it *reviewIter) Err() error {
	return it.err
}

func (it *reviewIter) Close() error {
	it.exhausted = true
	it.page = nil
	return nil
}

// reviewRecord shapes one raw review row into its harvested record.
func (r *Review) reviewRecord(raw model.Record, branch string) model.Record {
	record := raw.Clone()
	record["module"] = r.desc.Module
	record["organization"] = r.desc.Organization
	record["branch"] = branch
	if created, ok := raw.GetInt64("createdOn"); ok {
		record["date"] = created
	}
	if updated, ok := raw.GetInt64("lastUpdated"); ok {
		record["updated_on"] = updated
	}
	if owner, ok := raw["owner"].(map[string]interface{}); ok {
		if name, ok := owner["name"].(string); ok {
			record["author_name"] = name
		}
		if email, ok := owner["email"].(string); ok {
			record["author_email"] = strings.ToLower(email)
		}
	}
	return record
}
